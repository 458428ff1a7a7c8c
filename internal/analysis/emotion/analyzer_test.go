package emotion

import "testing"

func TestAnalyzeNegativeTagGetsComfort(t *testing.T) {
	decision := Analyze("That sounds hard. (Mood: Negative)")
	if decision.Emotion != Comfort {
		t.Fatalf("expected comfort emotion, got %s", decision.Emotion)
	}
	if decision.Scale < 1 || decision.Scale > 3.5 {
		t.Fatalf("comfort scale out of range: %f", decision.Scale)
	}
}

func TestAnalyzeEmojiTag(t *testing.T) {
	decision := Analyze("I'm here (Mood: 🙂 Happy)")
	if decision.Emotion != Happy {
		t.Fatalf("expected happy emotion, got %s", decision.Emotion)
	}
}

func TestAnalyzeNeutralTagFallsBackToText(t *testing.T) {
	decision := Analyze("Don't worry, I'm here with you. (Mood: 😐 Neutral)")
	if decision.Emotion != Comfort {
		t.Fatalf("expected comfort from keywords, got %s", decision.Emotion)
	}
}

func TestAnalyzeExcitedText(t *testing.T) {
	decision := Analyze("Wow!!! That is incredible news")
	if decision.Emotion != Excited {
		t.Fatalf("expected excited emotion, got %s", decision.Emotion)
	}
	if decision.Scale < 1.5 {
		t.Fatalf("expected boosted scale for excitement, got %f", decision.Scale)
	}
}

func TestAnalyzePlainTextIsNeutral(t *testing.T) {
	decision := Analyze("The meeting is at noon.")
	if decision.Emotion != Neutral || decision.Score != 0 {
		t.Fatalf("expected neutral, got %+v", decision)
	}
}

func TestSplitMoodTag(t *testing.T) {
	cases := []struct {
		in, reply, tag string
	}{
		{"Hi (Mood: Positive)", "Hi", "Positive"},
		{"Sorry, I couldn't connect to the server.", "Sorry, I couldn't connect to the server.", ""},
		{"a (b) (Mood: 😐 Neutral)", "a (b)", "😐 Neutral"},
	}

	for _, tc := range cases {
		reply, tag := SplitMoodTag(tc.in)
		if reply != tc.reply || tag != tc.tag {
			t.Fatalf("SplitMoodTag(%q) = (%q, %q), want (%q, %q)", tc.in, reply, tag, tc.reply, tc.tag)
		}
	}
}
