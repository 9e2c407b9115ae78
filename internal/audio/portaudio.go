//go:build portaudio

package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// PortAudioAvailable reports whether this binary was built with PortAudio support.
const PortAudioAvailable = true

// PortAudioSource captures through PortAudio. The device selector is either
// "default", a device index, or a substring of the device name.
type PortAudioSource struct{}

// Open initializes PortAudio and starts a blocking-read capture goroutine.
func (PortAudioSource) Open(ctx context.Context, cfg StreamConfig, onFrame func(Frame)) (Stream, error) {
	if cfg.SampleRate <= 0 || cfg.BlockSize <= 0 {
		return nil, fmt.Errorf("invalid stream config: rate=%d block=%d", cfg.SampleRate, cfg.BlockSize)
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}

	device, err := portAudioDevice(cfg.Device)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, err
	}

	params := portaudio.HighLatencyParameters(device, nil)
	params.Input.Channels = 1
	params.Output.Channels = 0
	params.SampleRate = float64(cfg.SampleRate)
	params.FramesPerBuffer = cfg.BlockSize

	buffer := make([]int16, cfg.BlockSize)
	pa, err := portaudio.OpenStream(params, buffer)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("open portaudio stream on %q: %w", device.Name, err)
	}
	if err := pa.Start(); err != nil {
		_ = pa.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("start portaudio stream: %w", err)
	}

	stream := &portAudioStream{
		stream:  pa,
		buffer:  buffer,
		onFrame: onFrame,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
		exited:  make(chan struct{}),
	}
	go stream.readLoop(ctx)
	return stream, nil
}

func portAudioDevice(selector string) (*portaudio.DeviceInfo, error) {
	selector = strings.TrimSpace(strings.ToLower(selector))
	if selector == "" || selector == "default" {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("default input device: %w", err)
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list portaudio devices: %w", err)
	}
	if index, convErr := strconv.Atoi(selector); convErr == nil {
		if index < 0 || index >= len(devices) {
			return nil, fmt.Errorf("audio device index %d out of range (%d devices)", index, len(devices))
		}
		return devices[index], nil
	}
	for _, device := range devices {
		if device.MaxInputChannels > 0 && strings.Contains(strings.ToLower(device.Name), selector) {
			return device, nil
		}
	}
	return nil, fmt.Errorf("audio device %q did not match any input device", selector)
}

type portAudioStream struct {
	stream  *portaudio.Stream
	buffer  []int16
	onFrame func(Frame)

	stopCh chan struct{}
	done   chan struct{}
	exited chan struct{}

	mu      sync.Mutex
	stopped bool
	err     error
}

func (s *portAudioStream) Done() <-chan struct{} { return s.done }

func (s *portAudioStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *portAudioStream) readLoop(ctx context.Context) {
	defer close(s.exited)

	var seq uint64
	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			s.fail(ctx.Err())
			return
		default:
		}

		if err := s.stream.Read(); err != nil {
			s.fail(fmt.Errorf("read portaudio stream: %w", err))
			return
		}

		pcm := make([]byte, len(s.buffer)*2)
		for i, sample := range s.buffer {
			binary.LittleEndian.PutUint16(pcm[i*2:], uint16(sample))
		}
		seq++
		if s.onFrame != nil {
			s.onFrame(Frame{PCM: pcm, Samples: len(s.buffer), Seq: seq})
		}
	}
}

func (s *portAudioStream) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.err != nil {
		return
	}
	s.err = err
	close(s.done)
}

// Close stops the stream, waits for the read goroutine and releases PortAudio.
func (s *portAudioStream) Close() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	close(s.stopCh)
	s.mu.Unlock()

	stopErr := s.stream.Stop()
	<-s.exited
	closeErr := s.stream.Close()
	_ = portaudio.Terminate()

	if stopErr != nil {
		return fmt.Errorf("stop portaudio stream: %w", stopErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close portaudio stream: %w", closeErr)
	}
	return nil
}
