package speech

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/soulmate-widget/internal/model/speech"
)

func testSpeechConfig() *speech.SpeechConfig {
	return &speech.SpeechConfig{
		AppID:       "app",
		AccessToken: "token",
		TTSVoice:    "en_female_amy_jupiter_bigtts",
		TTSFormat:   "mp3",
	}
}

func TestSynthesizeCollectsAudioUntilSessionFinished(t *testing.T) {
	requests := make(chan ttsRequest, 1)
	fake := newWSFake(t, func(conn *websocket.Conn, _ http.Header) {
		first := readFrame(t, conn)
		if first == nil {
			return
		}
		var body ttsRequest
		if err := json.Unmarshal(first.Payload, &body); err != nil {
			t.Errorf("request payload: %v", err)
		}
		requests <- body
		writeFrame(t, conn, &Frame{Type: AudioOnlyServerResponse, Payload: []byte("abc")})
		writeFrame(t, conn, &Frame{Type: AudioOnlyServerResponse, Payload: []byte("def")})
		writeFrame(t, conn, &Frame{
			Type:          FullServerResponse,
			Flags:         WithEvent,
			Serialization: JSONSerialization,
			Event:         EventTypeSessionFinished,
			SessionID:     "s",
			Payload:       []byte(`{"reqid":"req-1","code":3000,"addition":{"duration":"1200"}}`),
		})
	})

	client := NewSynthesizer(testSpeechConfig(), zerolog.Nop())
	client.endpoint = fake.endpoint()

	resp, err := client.Synthesize(context.Background(), &speech.TTSRequest{
		Text:         "I'm here with you.",
		Emotion:      "comfort",
		EmotionScale: 3,
	})
	if err != nil {
		t.Fatalf("Synthesize err: %v", err)
	}
	if string(resp.AudioData) != "abcdef" {
		t.Fatalf("audio = %q", resp.AudioData)
	}
	if resp.RequestID != "req-1" || resp.Duration != 1200 || resp.Format != "mp3" {
		t.Fatalf("unexpected response metadata: %+v", resp)
	}

	got := <-requests
	if got.ReqParams.Speaker != "en_female_amy_jupiter_bigtts" || got.ReqParams.Text != "I'm here with you." {
		t.Fatalf("unexpected request params: %+v", got.ReqParams)
	}
	if got.ReqParams.AudioParams.Emotion != "comfort" || got.ReqParams.AudioParams.EmotionScale != 3 {
		t.Fatalf("emotion not forwarded: %+v", got.ReqParams.AudioParams)
	}

	header := <-fake.headers
	if header.Get("X-Api-App-Key") != "app" || header.Get("X-Api-Access-Key") != "token" {
		t.Fatalf("credentials not sent: %v", header)
	}
	if header.Get("X-Api-Resource-Id") != "seed-tts-2.0" {
		t.Fatalf("unexpected resource %q", header.Get("X-Api-Resource-Id"))
	}
	if header.Get("X-Api-Connect-Id") == "" {
		t.Fatalf("connect id missing")
	}
}

func TestSynthesizeFallsBackOnResourceMismatch(t *testing.T) {
	fake := newWSFake(t, func(conn *websocket.Conn, header http.Header) {
		if readFrame(t, conn) == nil {
			return
		}
		if header.Get("X-Api-Resource-Id") == "seed-tts-2.0" {
			writeFrame(t, conn, &Frame{
				Type:      ErrorMessage,
				ErrorCode: 45000000,
				Payload:   []byte(`{"error":"resource ID is mismatched with speaker related resource"}`),
			})
			return
		}
		writeFrame(t, conn, &Frame{Type: AudioOnlyServerResponse, Payload: []byte("ok")})
		writeFrame(t, conn, &Frame{Type: FullServerResponse, Flags: NegativeSequenceNumber, Sequence: -2})
	})

	client := NewSynthesizer(testSpeechConfig(), zerolog.Nop())
	client.endpoint = fake.endpoint()

	resp, err := client.Synthesize(context.Background(), &speech.TTSRequest{Text: "hello"})
	if err != nil {
		t.Fatalf("Synthesize err: %v", err)
	}
	if string(resp.AudioData) != "ok" {
		t.Fatalf("audio = %q", resp.AudioData)
	}

	first, second := <-fake.headers, <-fake.headers
	if first.Get("X-Api-Resource-Id") != "seed-tts-2.0" || second.Get("X-Api-Resource-Id") != "volc.service_type.10029" {
		t.Fatalf("unexpected resource order: %q then %q", first.Get("X-Api-Resource-Id"), second.Get("X-Api-Resource-Id"))
	}
}

func TestSynthesizeRejectsEmptyTextAndMissingCredentials(t *testing.T) {
	client := NewSynthesizer(testSpeechConfig(), zerolog.Nop())
	if _, err := client.Synthesize(context.Background(), &speech.TTSRequest{Text: "  "}); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}

	client = NewSynthesizer(&speech.SpeechConfig{AppID: "app"}, zerolog.Nop())
	if _, err := client.Synthesize(context.Background(), &speech.TTSRequest{Text: "hi"}); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials, got %v", err)
	}
}

func TestResolveResourceCandidates(t *testing.T) {
	tests := []struct {
		name  string
		voice string
		want  []string
	}{
		{name: "default voice", voice: "", want: []string{"volc.service_type.10029", "seed-tts-2.0"}},
		{name: "mega clone voice", voice: "S_clone_speaker", want: []string{"volc.megatts.default"}},
		{name: "bigtts voice", voice: "en_female_amy_jupiter_bigtts", want: []string{"seed-tts-2.0", "volc.service_type.10029"}},
		{name: "legacy 1.0 voice", voice: "en_male_adam", want: []string{"volc.service_type.10029", "seed-tts-2.0"}},
	}

	for _, tt := range tests {
		got := resolveResourceCandidates(tt.voice)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: resolveResourceCandidates(%q) = %v, want %v", tt.name, tt.voice, got, tt.want)
		}
	}
}

func TestResolveSpeakerCandidates(t *testing.T) {
	tests := []struct {
		name     string
		request  string
		fallback string
		want     []string
	}{
		{name: "request and fallback", request: "en_male_glen_emo_v2_mars_bigtts", fallback: "en_female_amy_jupiter_bigtts", want: []string{"en_male_glen_emo_v2_mars_bigtts", "en_female_amy_jupiter_bigtts"}},
		{name: "request empty", request: "", fallback: "en_female_amy_jupiter_bigtts", want: []string{"en_female_amy_jupiter_bigtts"}},
		{name: "duplicates ignored", request: "EN_voice", fallback: "en_voice", want: []string{"EN_voice"}},
		{name: "nothing configured", want: []string{""}},
	}

	for _, tt := range tests {
		got := resolveSpeakerCandidates(tt.request, tt.fallback)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: resolveSpeakerCandidates(%q, %q) = %v, want %v", tt.name, tt.request, tt.fallback, got, tt.want)
		}
	}
}

func TestIsResourceMismatchError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "unrelated error", err: fmt.Errorf("some other error"), want: false},
		{name: "mismatch substring", err: fmt.Errorf(`tts error 1: {"error":"resource ID is mismatched with speaker related resource"}`), want: true},
	}

	for _, tc := range cases {
		if got := isResourceMismatchError(tc.err); got != tc.want {
			t.Errorf("%s: isResourceMismatchError(%v) = %v, want %v", tc.name, tc.err, got, tc.want)
		}
	}
}
