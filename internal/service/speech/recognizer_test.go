package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/soulmate-widget/internal/model/speech"
)

func TestTranscribeStreamsAudioAndReturnsFinalText(t *testing.T) {
	type seen struct {
		request  asrRequest
		received []byte
		chunks   int
	}
	results := make(chan seen, 1)

	fake := newWSFake(t, func(conn *websocket.Conn, _ http.Header) {
		var (
			request  asrRequest
			received bytes.Buffer
			chunks   int
		)
		first := readFrame(t, conn)
		if first == nil {
			return
		}
		payload, err := first.DecodedPayload()
		if err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		if err := json.Unmarshal(payload, &request); err != nil {
			t.Errorf("request payload: %v", err)
		}

		for {
			frame := readFrame(t, conn)
			if frame == nil {
				return
			}
			audio, err := frame.DecodedPayload()
			if err != nil {
				t.Errorf("decode audio: %v", err)
				return
			}
			received.Write(audio)
			chunks++
			if frame.IsLast() {
				break
			}
		}
		results <- seen{request: request, received: received.Bytes(), chunks: chunks}

		partial, _ := compress([]byte(`{"code":20000000,"result":{"text":"I feel"}}`), GzipCompression)
		writeFrame(t, conn, &Frame{Type: FullServerResponse, Flags: PositiveSequenceNumber, Sequence: 1, Serialization: JSONSerialization, Compression: GzipCompression, Payload: partial})

		final, _ := compress([]byte(`{"code":20000000,"result":{"utterances":[{"text":"I feel lonely"},{"text":"today"}]},"audio_info":{"duration":420}}`), GzipCompression)
		writeFrame(t, conn, &Frame{Type: FullServerResponse, Flags: NegativeSequenceNumber, Sequence: -2, Serialization: JSONSerialization, Compression: GzipCompression, Payload: final})
	})

	client := NewRecognizer(&speech.SpeechConfig{AppID: "app", AccessToken: "token"}, zerolog.Nop())
	client.endpoint = fake.endpoint()
	client.chunkInterval = 0

	audio := bytes.Repeat([]byte{1}, asrChunkSize+100)
	resp, err := client.Transcribe(context.Background(), &speech.ASRRequest{
		SessionID: "voice-1",
		AudioData: bytes.NewReader(audio),
	})
	if err != nil {
		t.Fatalf("Transcribe err: %v", err)
	}

	if resp.Text != "I feel lonely today" || resp.Duration != 420 || resp.SessionID != "voice-1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	got := <-results
	if got.chunks != 2 || !bytes.Equal(got.received, audio) {
		t.Fatalf("server got %d chunks, %d bytes", got.chunks, len(got.received))
	}
	if got.request.Audio.Language != DefaultLocale || got.request.Audio.Format != "wav" {
		t.Fatalf("unexpected audio params: %+v", got.request.Audio)
	}

	header := <-fake.headers
	if header.Get("X-Api-Resource-Id") != "volc.bigasr.sauc.duration" || header.Get("X-Api-Connect-Id") != "voice-1" {
		t.Fatalf("unexpected headers: %v", header)
	}
}

func TestTranscribeReportsServerError(t *testing.T) {
	fake := newWSFake(t, func(conn *websocket.Conn, _ http.Header) {
		if readFrame(t, conn) == nil {
			return
		}
		writeFrame(t, conn, &Frame{Type: ErrorMessage, ErrorCode: 45000081, Payload: []byte("audio format invalid")})
	})

	client := NewRecognizer(&speech.SpeechConfig{AppID: "app", AccessToken: "token", ConcurrentMode: true}, zerolog.Nop())
	client.endpoint = fake.endpoint()
	client.chunkInterval = 0

	_, err := client.Transcribe(context.Background(), &speech.ASRRequest{AudioData: strings.NewReader("pcm")})
	if err == nil || !strings.Contains(err.Error(), "audio format invalid") {
		t.Fatalf("expected server error, got %v", err)
	}

	header := <-fake.headers
	if header.Get("X-Api-Resource-Id") != "volc.bigasr.sauc.concurrent" {
		t.Fatalf("concurrent resource not used: %q", header.Get("X-Api-Resource-Id"))
	}
}

func TestTranscribeRejectsEmptyAudio(t *testing.T) {
	client := NewRecognizer(&speech.SpeechConfig{AppID: "app", AccessToken: "token"}, zerolog.Nop())
	client.endpoint = "ws://127.0.0.1:1/unused"

	if _, err := client.Transcribe(context.Background(), &speech.ASRRequest{AudioData: strings.NewReader("")}); !errors.Is(err, ErrNoAudio) {
		t.Fatalf("expected ErrNoAudio, got %v", err)
	}
	if _, err := client.Transcribe(context.Background(), &speech.ASRRequest{}); !errors.Is(err, ErrNoAudio) {
		t.Fatalf("expected ErrNoAudio for nil reader, got %v", err)
	}
}

func TestStaticRecognizer(t *testing.T) {
	resp, err := StaticRecognizer{Text: "hello"}.Transcribe(context.Background(), &speech.ASRRequest{SessionID: "s"})
	if err != nil || resp.Text != "hello" || resp.SessionID != "s" {
		t.Fatalf("unexpected result %+v, %v", resp, err)
	}

	boom := errors.New("mic unavailable")
	if _, err := (StaticRecognizer{Err: boom}).Transcribe(context.Background(), &speech.ASRRequest{}); !errors.Is(err, boom) {
		t.Fatalf("expected configured error, got %v", err)
	}
}
