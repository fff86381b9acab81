package chat

import "strings"

type personalityReply struct {
	keywords []string
	reply    string
}

// 순서대로 비교해서 처음 맞는 항목을 사용
var personalityReplies = []personalityReply{
	{
		keywords: []string{"friendly", "warm"},
		reply:    "That's wonderful! I love how you think about things. Tell me more about your perspective on this.",
	},
	{
		keywords: []string{"mysterious", "enigmatic"},
		reply:    "Hmm, that's an intriguing thought. There's more to this than meets the eye, isn't there?",
	},
	{
		keywords: []string{"playful", "fun"},
		reply:    "Oh, that's so interesting! I can't help but be curious about what you're thinking. What else is on your mind?",
	},
	{
		keywords: []string{"intellectual", "smart"},
		reply:    "That's a fascinating point. The implications of what you're saying are quite profound. I'd love to explore this further.",
	},
}

const defaultReply = "That's really interesting! I'm enjoying our conversation. What else would you like to talk about?"

// Respond - 캐릭터 성격 키워드로 답변 선택. message 내용은 보지 않는다.
func Respond(message, personality string) string {
	p := strings.ToLower(personality)
	for _, pr := range personalityReplies {
		for _, kw := range pr.keywords {
			if strings.Contains(p, kw) {
				return pr.reply
			}
		}
	}
	return defaultReply
}
