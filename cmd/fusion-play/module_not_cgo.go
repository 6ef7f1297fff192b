//go:build !cgo

package main

import (
	"errors"

	"github.com/fusionaudio/fusion"
)

func loadModule(data []byte, sampleRate int) (fusion.TrackerDecoder, error) {
	// with no cgo, there is no libopenmpt binding to decode modules with
	return nil, errors.New("tracker module playback requires a cgo build with libopenmpt")
}
