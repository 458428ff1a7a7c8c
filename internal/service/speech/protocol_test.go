package speech

import (
	"bytes"
	"testing"
)

func TestAudioRequestLastPacketNegatesSequence(t *testing.T) {
	frame := NewAudioRequest([]byte("pcm"), 5, true, NoCompression)
	if frame.Flags != NegativeSequenceNumber || frame.Sequence != -5 {
		t.Fatalf("unexpected flags/sequence: %04b %d", frame.Flags, frame.Sequence)
	}

	data, err := frame.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary err: %v", err)
	}

	got, err := ParseFrame(data)
	if err != nil {
		t.Fatalf("ParseFrame err: %v", err)
	}
	if !got.IsLast() || got.Sequence != -5 {
		t.Fatalf("expected last packet with sequence -5, got last=%v seq=%d", got.IsLast(), got.Sequence)
	}
	if !bytes.Equal(got.Payload, []byte("pcm")) {
		t.Fatalf("payload mismatch: %q", got.Payload)
	}
}

func TestFullClientRequestHeaderBytes(t *testing.T) {
	data, err := NewFullClientRequest([]byte(`{}`), GzipCompression).MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary err: %v", err)
	}

	want := []byte{0x11, 0x10, 0x11, 0x00, 0, 0, 0, 2, '{', '}'}
	if !bytes.Equal(data, want) {
		t.Fatalf("encoded frame = % x, want % x", data, want)
	}
}

func TestParseEventFrameWithSessionID(t *testing.T) {
	frame := &Frame{
		Type:          FullServerResponse,
		Flags:         WithEvent,
		Serialization: JSONSerialization,
		Event:         EventTypeSessionFinished,
		SessionID:     "session-1",
		Payload:       []byte(`{"code":0}`),
	}
	data, err := frame.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary err: %v", err)
	}

	got, err := ParseFrame(data)
	if err != nil {
		t.Fatalf("ParseFrame err: %v", err)
	}
	if got.Event != EventTypeSessionFinished || got.SessionID != "session-1" {
		t.Fatalf("unexpected event metadata: %+v", got)
	}
	if got.IsLast() {
		t.Fatalf("event frame without sequence flags must not be last")
	}
}

func TestParseConnectionEventCarriesConnectIDOnly(t *testing.T) {
	frame := &Frame{
		Type:      FullServerResponse,
		Flags:     WithEvent,
		Event:     EventTypeConnectionStarted,
		SessionID: "ignored",
		ConnectID: "conn-9",
	}
	data, _ := frame.MarshalBinary()

	got, err := ParseFrame(data)
	if err != nil {
		t.Fatalf("ParseFrame err: %v", err)
	}
	if got.ConnectID != "conn-9" || got.SessionID != "" {
		t.Fatalf("unexpected ids: session=%q connect=%q", got.SessionID, got.ConnectID)
	}
}

func TestParseErrorFrame(t *testing.T) {
	payload, err := compress([]byte("quota exceeded"), GzipCompression)
	if err != nil {
		t.Fatalf("compress err: %v", err)
	}
	data, _ := (&Frame{Type: ErrorMessage, Compression: GzipCompression, ErrorCode: 45000001, Payload: payload}).MarshalBinary()

	got, err := ParseFrame(data)
	if err != nil {
		t.Fatalf("ParseFrame err: %v", err)
	}
	if got.ErrorCode != 45000001 {
		t.Fatalf("unexpected error code %d", got.ErrorCode)
	}
	text, err := got.DecodedPayload()
	if err != nil {
		t.Fatalf("DecodedPayload err: %v", err)
	}
	if string(text) != "quota exceeded" {
		t.Fatalf("unexpected payload %q", text)
	}
}

func TestParseFrameRejectsBadInput(t *testing.T) {
	cases := map[string][]byte{
		"short header":      {0x11, 0x90},
		"wrong version":     {0x21, 0x90, 0x10, 0x00, 0, 0, 0, 0},
		"truncated payload": {0x11, 0x90, 0x10, 0x00, 0, 0, 0, 9, 'x'},
	}

	for name, data := range cases {
		if _, err := ParseFrame(data); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
