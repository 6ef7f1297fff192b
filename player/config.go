package player

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the player configuration shared by the front-ends, read from a
// yaml file. Zero values fall back to the defaults below.
type Config struct {
	MusicDir     string   `yaml:"musicDir"`
	SoundFont    string   `yaml:"soundFont"`
	SampleRate   int      `yaml:"sampleRate"`
	BufferFrames int      `yaml:"bufferFrames"`
	Volume       *float32 `yaml:"volume"`
}

const (
	defaultSampleRate   = 44100
	defaultBufferFrames = 128
)

func DefaultConfig() Config {
	return Config{
		SampleRate:   defaultSampleRate,
		BufferFrames: defaultBufferFrames,
	}
}

// LoadConfig reads a yaml config file and fills unset fields with
// defaults. A missing file is not an error; it just yields the defaults.
func LoadConfig(path string) (Config, error) {
	c := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return c, fmt.Errorf("could not read config %v: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("could not parse config %v: %w", path, err)
	}
	if c.SampleRate <= 0 {
		c.SampleRate = defaultSampleRate
	}
	if c.BufferFrames <= 0 {
		c.BufferFrames = defaultBufferFrames
	}
	return c, nil
}
