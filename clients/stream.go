package clients

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// StreamConfig configures a StreamRecognizer.
type StreamConfig struct {
	URL            string
	APIKey         string
	SampleRate     int
	LanguageCode   string
	Punctuation    bool
	InterimResults bool
	// SpeakerCount is passed to the service as a diarization hint. Zero
	// disables diarization.
	SpeakerCount int
	// ReconnectDelay is the pause before redialling after the service
	// drops the connection.
	ReconnectDelay time.Duration
	// DrainTimeout bounds the wait for final results once audio ends.
	DrainTimeout time.Duration
}

type recognitionConfig struct {
	Encoding                   string `json:"encoding"`
	SampleRateHertz            int    `json:"sampleRateHertz"`
	LanguageCode               string `json:"languageCode"`
	EnableAutomaticPunctuation bool   `json:"enableAutomaticPunctuation"`
	EnableSpeakerDiarization   bool   `json:"enableSpeakerDiarization,omitempty"`
	DiarizationSpeakerCount    int    `json:"diarizationSpeakerCount,omitempty"`
	Model                      string `json:"model"`
}

type configMessage struct {
	StreamingConfig struct {
		Config         recognitionConfig `json:"config"`
		InterimResults bool              `json:"interimResults"`
	} `json:"streamingConfig"`
}

type audioMessage struct {
	AudioContent string `json:"audioContent"`
}

type streamResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
		IsFinal bool `json:"isFinal"`
	} `json:"results"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// StreamRecognizer streams audio over a websocket to a speech service that
// speaks the streamingRecognize JSON protocol.
type StreamRecognizer struct {
	cfg    StreamConfig
	dialer *websocket.Dialer
	clock  clockwork.Clock
	log    *logrus.Entry
}

type StreamOption func(*StreamRecognizer)

func WithDialer(d *websocket.Dialer) StreamOption {
	return func(s *StreamRecognizer) { s.dialer = d }
}

func WithStreamClock(c clockwork.Clock) StreamOption {
	return func(s *StreamRecognizer) { s.clock = c }
}

func NewStreamRecognizer(cfg StreamConfig, opts ...StreamOption) *StreamRecognizer {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = "en-US"
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = time.Second
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 3 * time.Second
	}
	s := &StreamRecognizer{
		cfg:    cfg,
		dialer: websocket.DefaultDialer,
		clock:  clockwork.NewRealClock(),
		log:    logrus.WithField("component", "speech"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *StreamRecognizer) endpoint() (string, error) {
	u, err := url.Parse(s.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("speech url: %w", err)
	}
	if s.cfg.APIKey != "" {
		q := u.Query()
		q.Set("key", s.cfg.APIKey)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (s *StreamRecognizer) configMessage() configMessage {
	var m configMessage
	m.StreamingConfig.Config = recognitionConfig{
		Encoding:                   "LINEAR16",
		SampleRateHertz:            s.cfg.SampleRate,
		LanguageCode:               s.cfg.LanguageCode,
		EnableAutomaticPunctuation: s.cfg.Punctuation,
		EnableSpeakerDiarization:   s.cfg.SpeakerCount > 0,
		DiarizationSpeakerCount:    s.cfg.SpeakerCount,
		Model:                      "default",
	}
	m.StreamingConfig.InterimResults = s.cfg.InterimResults
	return m
}

// Recognize keeps a streaming session open for as long as audio flows,
// redialling after ReconnectDelay whenever the service closes the socket.
// A failure on the very first dial is returned to the caller.
func (s *StreamRecognizer) Recognize(ctx context.Context, audioIn <-chan []byte, out chan<- Result) error {
	endpoint, err := s.endpoint()
	if err != nil {
		return err
	}
	for attempt := 0; ; attempt++ {
		finished, err := s.session(ctx, endpoint, audioIn, out)
		if finished || ctx.Err() != nil {
			return nil
		}
		if attempt == 0 && !errors.Is(err, ErrClosed) {
			return err
		}
		s.log.WithError(err).WithField("retry_in", s.cfg.ReconnectDelay).Warn("speech connection lost")
		select {
		case <-ctx.Done():
			return nil
		case <-s.clock.After(s.cfg.ReconnectDelay):
		}
	}
}

// session runs one websocket connection. finished is true once audio has
// been fully sent and the service has answered.
func (s *StreamRecognizer) session(ctx context.Context, endpoint string, audioIn <-chan []byte, out chan<- Result) (finished bool, err error) {
	conn, _, err := s.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("speech dial: %w", err)
	}
	s.log.Debug("speech connection established")

	if err := conn.WriteJSON(s.configMessage()); err != nil {
		conn.Close()
		return false, fmt.Errorf("%w: send config: %v", ErrClosed, err)
	}

	// read must not touch out once session returns; the caller may close it.
	readCtx, stopRead := context.WithCancel(ctx)
	readDone := make(chan error, 1)
	go func() { readDone <- s.read(readCtx, conn, out) }()
	reading := true
	defer func() {
		stopRead()
		conn.Close()
		if reading {
			<-readDone
		}
	}()

	for {
		select {
		case <-ctx.Done():
			s.closeNormal(conn)
			return false, nil
		case err := <-readDone:
			reading = false
			if err == nil {
				return false, fmt.Errorf("%w by service", ErrClosed)
			}
			return false, fmt.Errorf("%w: %v", ErrClosed, err)
		case pcm, ok := <-audioIn:
			if !ok {
				s.closeNormal(conn)
				select {
				case <-readDone:
					reading = false
				case <-ctx.Done():
				case <-s.clock.After(s.cfg.DrainTimeout):
					s.log.Warn("speech service did not close after end of audio")
				}
				return true, nil
			}
			msg := audioMessage{AudioContent: base64.StdEncoding.EncodeToString(pcm)}
			if err := conn.WriteJSON(msg); err != nil {
				return false, fmt.Errorf("%w: send audio: %v", ErrClosed, err)
			}
		}
	}
}

func (s *StreamRecognizer) closeNormal(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

// read forwards results until the connection closes. Responses without a
// transcript are skipped.
func (s *StreamRecognizer) read(ctx context.Context, conn *websocket.Conn, out chan<- Result) error {
	for {
		var resp streamResponse
		if err := conn.ReadJSON(&resp); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}
		if resp.Error != nil {
			s.log.WithFields(logrus.Fields{
				"code":    resp.Error.Code,
				"message": resp.Error.Message,
			}).Error("speech service error")
			continue
		}
		if len(resp.Results) == 0 || len(resp.Results[0].Alternatives) == 0 {
			continue
		}
		first := resp.Results[0]
		text := strings.TrimSpace(first.Alternatives[0].Transcript)
		if text == "" {
			continue
		}
		if !deliver(ctx, out, Result{Text: text, Final: first.IsFinal}) {
			return ctx.Err()
		}
	}
}
