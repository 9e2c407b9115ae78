package recognizer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/rbright/hark/internal/audio"
	"github.com/rbright/hark/internal/transcript"
	speechkit "github.com/yandex-cloud/go-genproto/yandex/cloud/ai/stt/v3"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

const defaultYandexEndpoint = "stt.api.cloud.yandex.net:443"

// YandexConfig configures the SpeechKit v3 streaming backend.
type YandexConfig struct {
	Endpoint string
	APIKey   string
	IAMToken string
	FolderID string
	// Insecure disables TLS; only meant for local test servers.
	Insecure bool
}

// YandexAdapter streams frames to SpeechKit and reports server-side finals.
// Accept never waits for recognition: finals received since the previous
// call are returned with the next one.
type YandexAdapter struct {
	cfg        YandexConfig
	sampleRate int
	language   string
	logger     *slog.Logger

	conn   *grpc.ClientConn
	client speechkit.RecognizerClient

	mu      sync.Mutex
	session *yandexSession
}

type yandexSession struct {
	stream speechkit.Recognizer_RecognizeStreamingClient
	cancel context.CancelFunc
	finals chan string
	errs   chan error
}

// NewYandexAdapter validates credentials and prepares a lazy connection.
func NewYandexAdapter(_ context.Context, cfg YandexConfig, sampleRate int, language string, logger *slog.Logger) (*YandexAdapter, error) {
	if strings.TrimSpace(cfg.APIKey) == "" && strings.TrimSpace(cfg.IAMToken) == "" {
		return nil, fmt.Errorf("%w: yandex requires an api key or iam token", ErrCredentialsMissing)
	}
	if cfg.IAMToken != "" && strings.TrimSpace(cfg.FolderID) == "" {
		return nil, fmt.Errorf("%w: yandex iam token requires a folder id", ErrCredentialsMissing)
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultYandexEndpoint
	}
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	if language == "" {
		language = "ru-RU"
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	if cfg.Insecure {
		creds = insecure.NewCredentials()
	}
	conn, err := grpc.NewClient(cfg.Endpoint, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("create yandex stt client: %w", err)
	}

	return &YandexAdapter{
		cfg:        cfg,
		sampleRate: sampleRate,
		language:   language,
		logger:     logger,
		conn:       conn,
		client:     speechkit.NewRecognizerClient(conn),
	}, nil
}

// Accept sends one chunk and returns any finals received so far.
func (y *YandexAdapter) Accept(_ context.Context, frame audio.Frame) (Result, error) {
	y.mu.Lock()
	defer y.mu.Unlock()

	session, err := y.ensureSession()
	if err != nil {
		return Result{}, err
	}

	if err := session.stream.Send(&speechkit.StreamingRequest{
		Event: &speechkit.StreamingRequest_Chunk{
			Chunk: &speechkit.AudioChunk{Data: frame.PCM},
		},
	}); err != nil {
		y.resetLocked()
		return Result{}, fmt.Errorf("send audio chunk: %w", err)
	}

	return y.collectLocked(session)
}

// Flush returns pending finals and drops the server session, discarding any
// partial recognition state.
func (y *YandexAdapter) Flush(_ context.Context) (Result, error) {
	y.mu.Lock()
	defer y.mu.Unlock()

	if y.session == nil {
		return Result{}, nil
	}
	result, err := y.collectLocked(y.session)
	y.resetLocked()
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

// Close ends the session and the connection.
func (y *YandexAdapter) Close() error {
	y.mu.Lock()
	y.resetLocked()
	y.mu.Unlock()
	return y.conn.Close()
}

func (y *YandexAdapter) collectLocked(session *yandexSession) (Result, error) {
	var parts []string
	for {
		select {
		case text := <-session.finals:
			parts = append(parts, text)
			continue
		case err := <-session.errs:
			y.resetLocked()
			return Result{}, err
		default:
		}
		break
	}
	text := transcript.Assemble(parts, transcript.Options{})
	if text == "" {
		return Result{}, nil
	}
	return Result{Text: text, Final: true}, nil
}

func (y *YandexAdapter) ensureSession() (*yandexSession, error) {
	if y.session != nil {
		return y.session, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	ctx = metadata.NewOutgoingContext(ctx, y.authMetadata())

	stream, err := y.client.RecognizeStreaming(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open recognize stream: %w", err)
	}
	if err := stream.Send(y.sessionOptions()); err != nil {
		cancel()
		return nil, fmt.Errorf("send session options: %w", err)
	}

	session := &yandexSession{
		stream: stream,
		cancel: cancel,
		finals: make(chan string, 64),
		errs:   make(chan error, 1),
	}
	go receiveFinals(session, y.logger)
	y.session = session
	return session, nil
}

func (y *YandexAdapter) resetLocked() {
	if y.session == nil {
		return
	}
	_ = y.session.stream.CloseSend()
	y.session.cancel()
	y.session = nil
}

func (y *YandexAdapter) authMetadata() metadata.MD {
	if y.cfg.IAMToken != "" {
		return metadata.Pairs(
			"authorization", "Bearer "+y.cfg.IAMToken,
			"x-folder-id", y.cfg.FolderID,
		)
	}
	md := metadata.Pairs("authorization", "Api-Key "+y.cfg.APIKey)
	if y.cfg.FolderID != "" {
		md.Set("x-folder-id", y.cfg.FolderID)
	}
	return md
}

func (y *YandexAdapter) sessionOptions() *speechkit.StreamingRequest {
	return &speechkit.StreamingRequest{
		Event: &speechkit.StreamingRequest_SessionOptions{
			SessionOptions: &speechkit.StreamingOptions{
				RecognitionModel: &speechkit.RecognitionModelOptions{
					AudioFormat: &speechkit.AudioFormatOptions{
						AudioFormat: &speechkit.AudioFormatOptions_RawAudio{
							RawAudio: &speechkit.RawAudio{
								AudioEncoding:     speechkit.RawAudio_LINEAR16_PCM,
								SampleRateHertz:   int64(y.sampleRate),
								AudioChannelCount: 1,
							},
						},
					},
					TextNormalization: &speechkit.TextNormalizationOptions{
						TextNormalization: speechkit.TextNormalizationOptions_TEXT_NORMALIZATION_ENABLED,
					},
					LanguageRestriction: &speechkit.LanguageRestrictionOptions{
						RestrictionType: speechkit.LanguageRestrictionOptions_WHITELIST,
						LanguageCode:    []string{y.language},
					},
					AudioProcessingType: speechkit.RecognitionModelOptions_REAL_TIME,
				},
			},
		},
	}
}

// receiveFinals forwards final alternatives until the stream ends.
func receiveFinals(session *yandexSession, logger *slog.Logger) {
	for {
		resp, err := session.stream.Recv()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			select {
			case session.errs <- fmt.Errorf("receive recognition: %w", err):
			default:
			}
			return
		}

		final := resp.GetFinal()
		if final == nil {
			continue
		}
		for _, alternative := range final.GetAlternatives() {
			text := strings.TrimSpace(alternative.GetText())
			if text == "" {
				continue
			}
			select {
			case session.finals <- text:
			default:
				logger.Warn("dropping yandex final: receiver backlog full", "chars", len(text))
			}
			// Only the top alternative is delivered.
			break
		}
	}
}
