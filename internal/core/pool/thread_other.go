//go:build !linux

package pool

func nameThread(string) error { return nil }
