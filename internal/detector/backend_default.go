//go:build !gocv

package detector

func newBackend() backend { return pureBackend{} }
