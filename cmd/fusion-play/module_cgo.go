//go:build cgo

package main

import (
	"github.com/fusionaudio/fusion"
	"github.com/fusionaudio/fusion/openmpt"
)

func loadModule(data []byte, sampleRate int) (fusion.TrackerDecoder, error) {
	return openmpt.Load(data, sampleRate)
}
