package recognizer

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mattn/go-shellwords"
)

// Placeholders substituted in exec command arguments.
const (
	placeholderInput    = "{input}"
	placeholderModel    = "{model}"
	placeholderLanguage = "{language}"
)

// ExecTranscriber runs an external command once per utterance. The command
// receives a WAV file path through {input} (appended when absent) and prints
// either plain text or a JSON object with a "text" field.
type ExecTranscriber struct {
	argv      []string
	modelPath string
	language  string
}

type execResult struct {
	Text string `json:"text"`
}

// NewExecTranscriber parses command and verifies that its binary and the
// optional model path exist.
func NewExecTranscriber(command string, modelPath string, language string) (*ExecTranscriber, error) {
	parser := shellwords.NewParser()
	parser.ParseEnv = true
	argv, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse recognizer command: %w", err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("%w: command is empty", ErrCommandNotFound)
	}
	if _, err := exec.LookPath(argv[0]); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCommandNotFound, argv[0], err)
	}
	if strings.TrimSpace(modelPath) != "" {
		if _, err := os.Stat(modelPath); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrModelNotFound, modelPath, err)
		}
	}

	return &ExecTranscriber{argv: argv, modelPath: modelPath, language: language}, nil
}

// Transcribe writes pcm to a temporary WAV file and runs the command on it.
func (e *ExecTranscriber) Transcribe(ctx context.Context, pcm []byte, sampleRate int) (string, error) {
	file, err := os.CreateTemp("", "hark_utterance_*.wav")
	if err != nil {
		return "", fmt.Errorf("temp file: %w", err)
	}
	defer os.Remove(file.Name())
	defer file.Close()

	if err := writePCM16WAV(file, pcm, sampleRate); err != nil {
		return "", err
	}

	args := e.args(file.Name())
	command := exec.CommandContext(ctx, args[0], args[1:]...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return "", fmt.Errorf("recognizer command failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return parseExecOutput(stdout.Bytes())
}

func (e *ExecTranscriber) args(input string) []string {
	replacer := strings.NewReplacer(
		placeholderInput, input,
		placeholderModel, e.modelPath,
		placeholderLanguage, e.language,
	)

	args := make([]string, 0, len(e.argv)+1)
	sawInput := false
	for _, arg := range e.argv {
		if strings.Contains(arg, placeholderInput) {
			sawInput = true
		}
		args = append(args, replacer.Replace(arg))
	}
	if !sawInput {
		args = append(args, input)
	}
	return args
}

func parseExecOutput(out []byte) (string, error) {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 {
		return "", nil
	}
	if trimmed[0] != '{' {
		return string(trimmed), nil
	}

	var resp execResult
	if err := json.Unmarshal(trimmed, &resp); err != nil {
		return "", fmt.Errorf("decode recognizer response: %w", err)
	}
	return resp.Text, nil
}

// writePCM16WAV encodes mono s16le pcm as a 16-bit WAV file.
func writePCM16WAV(file *os.File, pcm []byte, sampleRate int) error {
	if len(pcm)%2 != 0 {
		return errors.New("pcm payload not aligned")
	}
	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	buffer := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: 16,
	}

	enc := wav.NewEncoder(file, sampleRate, 16, 1, 1)
	if err := enc.Write(buffer); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}
