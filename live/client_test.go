package live

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
)

func b64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func TestDecodeServerMessageAudio(t *testing.T) {
	raw := []byte{0x01, 0x02, 0x03, 0x04}
	msg := decodeServerMessage(&serverMessage{
		ServerContent: &serverContent{
			ModelTurn: &content{
				Parts: []part{
					{InlineData: &inlineData{MimeType: "audio/pcm;rate=24000", Data: b64(raw)}},
				},
			},
		},
	})
	if !bytes.Equal(msg.Audio, raw) {
		t.Errorf("audio = %v, want %v", msg.Audio, raw)
	}
	if msg.Interrupted || msg.TurnComplete {
		t.Error("unexpected control flags")
	}
}

func TestDecodeServerMessageConcatenatesParts(t *testing.T) {
	a := []byte{0x01, 0x02}
	b := []byte{0x03, 0x04}
	msg := decodeServerMessage(&serverMessage{
		ServerContent: &serverContent{
			ModelTurn: &content{
				Parts: []part{
					{Text: "hold "},
					{InlineData: &inlineData{MimeType: "audio/pcm;rate=24000", Data: b64(a)}},
					{Text: "the angle"},
					{InlineData: &inlineData{MimeType: "audio/pcm;rate=24000", Data: b64(b)}},
				},
			},
		},
	})
	if msg.Text != "hold the angle" {
		t.Errorf("text = %q", msg.Text)
	}
	want := []byte{0x01, 0x02, 0x03, 0x04}
	if !bytes.Equal(msg.Audio, want) {
		t.Errorf("audio = %v, want %v", msg.Audio, want)
	}
}

func TestDecodeServerMessageDropsMalformedAudio(t *testing.T) {
	good := []byte{0x0a, 0x0b}
	msg := decodeServerMessage(&serverMessage{
		ServerContent: &serverContent{
			ModelTurn: &content{
				Parts: []part{
					{InlineData: &inlineData{MimeType: "audio/pcm;rate=24000", Data: "%%%not-base64%%%"}},
					{InlineData: &inlineData{MimeType: "audio/pcm;rate=24000", Data: b64(good)}},
				},
			},
		},
	})
	if !bytes.Equal(msg.Audio, good) {
		t.Errorf("audio = %v, want only the valid segment %v", msg.Audio, good)
	}
}

func TestDecodeServerMessageControlFlags(t *testing.T) {
	msg := decodeServerMessage(&serverMessage{
		ServerContent: &serverContent{Interrupted: true},
	})
	if !msg.Interrupted {
		t.Error("interrupted not mapped")
	}

	msg = decodeServerMessage(&serverMessage{
		ServerContent: &serverContent{TurnComplete: true},
	})
	if !msg.TurnComplete {
		t.Error("turnComplete not mapped")
	}
}

func TestDecodeServerMessageEmpty(t *testing.T) {
	msg := decodeServerMessage(&serverMessage{})
	if msg.Text != "" || msg.Audio != nil || msg.Interrupted || msg.TurnComplete {
		t.Errorf("expected zero message, got %+v", msg)
	}
}

func TestRealtimeInputWireShape(t *testing.T) {
	data, err := json.Marshal(realtimeMessage{
		RealtimeInput: realtimeInput{
			MediaChunks: []inlineData{{MimeType: AudioMIMEType, Data: "AAAA"}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatal(err)
	}
	input, ok := parsed["realtimeInput"].(map[string]any)
	if !ok {
		t.Fatalf("missing realtimeInput key in %s", data)
	}
	chunks, ok := input["mediaChunks"].([]any)
	if !ok || len(chunks) != 1 {
		t.Fatalf("missing mediaChunks in %s", data)
	}
	chunk := chunks[0].(map[string]any)
	if chunk["mimeType"] != "audio/pcm;rate=16000" {
		t.Errorf("mimeType = %v", chunk["mimeType"])
	}
	if chunk["data"] != "AAAA" {
		t.Errorf("data = %v", chunk["data"])
	}
}

func TestSetupWireShape(t *testing.T) {
	msg := setupMessage{
		Setup: setupPayload{
			Model: "models/" + DefaultModel,
			GenerationConfig: &generationConfig{
				ResponseModalities: []string{"AUDIO"},
				SpeechConfig: &speechConfig{
					VoiceConfig: &voiceConfig{
						PrebuiltVoiceConfig: &prebuiltVoice{VoiceName: DefaultVoice},
					},
				},
			},
			SystemInstruction: &content{Parts: []part{{Text: "be brief"}}},
		},
	}
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{
		`"setup"`, `"model":"models/`, `"responseModalities":["AUDIO"]`,
		`"voiceName":"Kore"`, `"systemInstruction"`,
	} {
		if !bytes.Contains(data, []byte(key)) {
			t.Errorf("setup JSON missing %s: %s", key, data)
		}
	}
}

func TestFakeConnRecordsAndCloses(t *testing.T) {
	fc := NewFakeConn()
	if err := fc.SendAudio([]byte{1, 2}); err != nil {
		t.Fatal(err)
	}
	if err := fc.SendImage([]byte{0xff, 0xd8}); err != nil {
		t.Fatal(err)
	}
	if got := len(fc.SentAudio()); got != 1 {
		t.Errorf("sent audio = %d, want 1", got)
	}
	if got := len(fc.SentImages()); got != 1 {
		t.Errorf("sent images = %d, want 1", got)
	}

	fc.Push(Message{Text: "rotate now"})
	msg, err := fc.Recv()
	if err != nil {
		t.Fatal(err)
	}
	if msg.Text != "rotate now" {
		t.Errorf("text = %q", msg.Text)
	}

	if err := fc.Close(); err != nil {
		t.Fatal(err)
	}
	if err := fc.SendAudio([]byte{1, 2}); !errors.Is(err, ErrClosed) {
		t.Errorf("send after close = %v, want ErrClosed", err)
	}
	if _, err := fc.Recv(); !errors.Is(err, ErrClosed) {
		t.Errorf("recv after close = %v, want ErrClosed", err)
	}
}
