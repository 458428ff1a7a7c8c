package emotion

import (
	"math"
	"strings"
)

// Label 表示TTS可以接受的情绪标签。
type Label string

const (
	Neutral  Label = "neutral"
	Happy    Label = "happy"
	Sad      Label = "sad"
	Angry    Label = "angry"
	Excited  Label = "excited"
	Tender   Label = "tender"
	Comfort  Label = "comfort"
	Magnetic Label = "magnetic"
)

// Decision 给出情绪识别结果以及推荐情绪强度。
type Decision struct {
	Emotion Label
	Scale   float32
	Score   int
}

const moodMarker = "(Mood:"

var keywordBuckets = map[Label][]string{
	Happy: {
		"happy", "glad", "great", "awesome", "amazing", "wonderful", "love", "thanks", "thank you",
		"proud", "delighted", "cheerful", "lol", "haha", "nice", "fantastic",
	},
	Sad: {
		"sad", "unhappy", "cry", "depressed", "lonely", "alone", "hurt", "sorrow", "upset",
		"miss", "tired", "hopeless", "empty", "down", "grief", "heartbroken",
	},
	Angry: {
		"angry", "furious", "rage", "mad", "annoyed", "pissed", "outrage", "hate", "fed up",
	},
	Excited: {
		"can't wait", "excited", "superb", "unbelievable", "hype", "wow", "thrilled", "incredible",
	},
	Tender: {
		"soft", "gentle", "calm", "softly", "quiet", "slowly", "peaceful", "relax", "warm",
	},
	Comfort: {
		"don't worry", "it's okay", "i understand", "i'm here", "i am here", "with you", "for you",
		"calm down", "breathe", "take it easy", "you're safe", "you are not alone", "support",
		"take care", "be kind to yourself",
	},
	Magnetic: {
		"serious", "important", "must", "focus", "critical", "remember", "responsibility", "careful",
	},
}

// tagLabels 把后端返回的情绪标签（描述的是用户情绪）映射为用户侧情绪。
var tagLabels = map[string]Label{
	"positive": Happy,
	"happy":    Happy,
	"negative": Sad,
	"sad":      Sad,
	"down":     Sad,
	"angry":    Angry,
	"excited":  Excited,
	"neutral":  Neutral,
}

var punctuationBoost = map[Label]int{
	Happy:   2,
	Excited: 3,
}

// Analyze 推断一条机器人回复应使用的语音情绪。回复末尾带有 "(Mood: X)" 标签时，
// 标签描述的是用户情绪，映射为安抚或共情的语气；否则根据回复文本的关键词打分。
func Analyze(text string) Decision {
	reply, tag := SplitMoodTag(text)

	if label, ok := FromTag(tag); ok && label != Neutral {
		return finalize(coerceEmotionFromUser(Decision{Emotion: label, Score: 6}))
	}

	return finalize(scoreText(reply))
}

// SplitMoodTag separates "reply (Mood: tag)" into its parts. Text without a
// trailing tag is returned unchanged with an empty tag.
func SplitMoodTag(text string) (reply, tag string) {
	trimmed := strings.TrimSpace(text)
	idx := strings.LastIndex(trimmed, moodMarker)
	if idx < 0 || !strings.HasSuffix(trimmed, ")") {
		return trimmed, ""
	}
	tag = strings.TrimSpace(trimmed[idx+len(moodMarker) : len(trimmed)-1])
	return strings.TrimSpace(trimmed[:idx]), tag
}

// FromTag maps a backend mood tag such as "Positive" or "🙂 Happy" to a label.
// Leading emoji and decoration are ignored.
func FromTag(tag string) (Label, bool) {
	fields := strings.Fields(strings.ToLower(tag))
	for i := len(fields) - 1; i >= 0; i-- {
		word := strings.Trim(fields[i], ".,!?:;()")
		if label, ok := tagLabels[word]; ok {
			return label, true
		}
	}
	return Neutral, false
}

func finalize(score Decision) Decision {
	if score.Score == 0 {
		return Decision{Emotion: Neutral, Scale: 3, Score: 0}
	}

	scale := 2 + float32(score.Score)/4
	if score.Emotion == Excited {
		scale += 1
	}
	if score.Emotion == Magnetic {
		scale = float32(math.Min(4.0, float64(scale)))
	}
	if score.Emotion == Comfort || score.Emotion == Tender {
		scale = float32(math.Min(3.5, float64(scale)))
	}

	if scale < 1 {
		scale = 1
	}
	if scale > 5 {
		scale = 5
	}

	return Decision{Emotion: score.Emotion, Scale: scale, Score: score.Score}
}

func scoreText(text string) Decision {
	normalized := strings.TrimSpace(strings.ToLower(text))
	if normalized == "" {
		return Decision{Emotion: Neutral}
	}

	scores := make(map[Label]int)
	for label, keywords := range keywordBuckets {
		for _, word := range keywords {
			if strings.Contains(normalized, word) {
				scores[label] += 3
			}
		}
	}

	exclamations := strings.Count(text, "!")
	if exclamations > 0 {
		scores[Excited] += exclamations * punctuationBoost[Excited]
		if exclamations == 1 {
			scores[Happy] += punctuationBoost[Happy]
		}
	}

	bestLabel := Neutral
	bestScore := 0
	// 固定遍历顺序，避免平分时结果随 map 顺序漂移
	for _, label := range []Label{Comfort, Sad, Angry, Excited, Happy, Tender, Magnetic} {
		if s := scores[label]; s > bestScore {
			bestScore = s
			bestLabel = label
		}
	}

	return Decision{Emotion: bestLabel, Score: bestScore}
}

// coerceEmotionFromUser 把用户情绪映射为回复语气：难过时安抚，生气时沉稳。
func coerceEmotionFromUser(user Decision) Decision {
	switch user.Emotion {
	case Sad:
		return Decision{Emotion: Comfort, Score: user.Score}
	case Angry:
		return Decision{Emotion: Magnetic, Score: user.Score}
	case Tender, Comfort:
		return Decision{Emotion: Tender, Score: user.Score}
	default:
		return user
	}
}
