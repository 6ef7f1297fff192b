// Package oto is the default audio backend, feeding a fusion.SampleSource
// to the ebitengine/oto v3 player.
package oto

import (
	"fmt"
	"io"

	"github.com/ebitengine/oto/v3"

	"github.com/fusionaudio/fusion"
)

type Context struct {
	ctx          *oto.Context
	bufferFrames int
}

// NewContext opens the system audio device for stereo float32 output.
// bufferFrames caps how many frames the source is asked for per Process
// call, regardless of how large the reads from the backend are.
func NewContext(sampleRate, bufferFrames int) (*Context, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	return &Context{ctx: ctx, bufferFrames: bufferFrames}, nil
}

// Play starts pulling samples from the source. Closing the returned closer
// stops playback; the source is not called again after that.
func (c *Context) Play(source fusion.SampleSource) (io.Closer, error) {
	player := c.ctx.NewPlayer(newSourceReader(source, c.bufferFrames))
	player.Play()
	return player, nil
}

func (c *Context) Close() error {
	return c.ctx.Suspend()
}
