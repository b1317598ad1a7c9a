package memory

import (
	"sort"
	"strings"

	"github.com/sandevgo/tuskmem/internal/core"
)

// MaxTopics bounds the topics reported for a set of texts.
const MaxTopics = 5

// topicVocabulary maps a topic to the lowercase substrings that indicate it.
var topicVocabulary = map[string][]string{
	"faith":         {"faith", "believe", "belief", "trust in god"},
	"prayer":        {"pray", "prayer", "intercession"},
	"grace":         {"grace", "mercy", "unmerited"},
	"love":          {"love", "compassion", "kindness"},
	"forgiveness":   {"forgive", "forgiveness", "repent", "reconcil"},
	"hope":          {"hope", "promise", "future"},
	"salvation":     {"salvation", "saved", "redemption", "eternal life"},
	"scripture":     {"bible", "scripture", "verse", "gospel", "psalm"},
	"church":        {"church", "congregation", "worship", "pastor", "ministry"},
	"family":        {"family", "marriage", "husband", "wife", "children", "parent"},
	"relationships": {"friend", "relationship", "dating", "community"},
	"work":          {"work", "job", "career", "boss", "calling"},
	"health":        {"health", "sick", "illness", "healing", "doctor"},
	"anxiety":       {"anxious", "anxiety", "worry", "fear", "stress"},
	"grief":         {"grief", "grieving", "loss", "death", "mourning"},
	"purpose":       {"purpose", "meaning", "direction", "god's will"},
	"doubt":         {"doubt", "question", "struggle to believe"},
	"gratitude":     {"thank", "grateful", "gratitude", "blessing"},
}

var (
	positiveWords = []string{
		"happy", "joy", "grateful", "thankful", "blessed", "peace", "love",
		"hope", "good", "great", "wonderful", "excited", "encouraged", "glad",
	}
	negativeWords = []string{
		"sad", "angry", "afraid", "anxious", "worried", "depressed", "lonely",
		"hurt", "bad", "terrible", "lost", "guilty", "ashamed", "hopeless", "grief",
	}
)

// ClassifyTopics returns up to MaxTopics topics ordered by how often their
// keywords occur in texts, case-insensitively. Ties are ordered by name.
func ClassifyTopics(texts []string) []string {
	corpus := strings.ToLower(strings.Join(texts, "\n"))
	if strings.TrimSpace(corpus) == "" {
		return nil
	}

	type hit struct {
		topic string
		count int
	}
	var hits []hit
	for topic, keywords := range topicVocabulary {
		n := countMatches(corpus, keywords)
		if n > 0 {
			hits = append(hits, hit{topic: topic, count: n})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].count != hits[j].count {
			return hits[i].count > hits[j].count
		}
		return hits[i].topic < hits[j].topic
	})

	if len(hits) > MaxTopics {
		hits = hits[:MaxTopics]
	}
	topics := make([]string, len(hits))
	for i, h := range hits {
		topics[i] = h.topic
	}
	return topics
}

// ClassifyTone votes positive against negative keyword occurrences over all
// texts. Only a strict majority decides; a tie is neutral.
// Negation is not handled: "not good" counts as positive.
func ClassifyTone(texts []string) core.Tone {
	corpus := strings.ToLower(strings.Join(texts, "\n"))

	pos := countMatches(corpus, positiveWords)
	neg := countMatches(corpus, negativeWords)
	switch {
	case pos > neg:
		return core.TonePositive
	case neg > pos:
		return core.ToneNegative
	default:
		return core.ToneNeutral
	}
}

func countMatches(corpus string, keywords []string) int {
	n := 0
	for _, k := range keywords {
		n += strings.Count(corpus, k)
	}
	return n
}
