package generateimage

// styleSuffixes - 스타일별 프롬프트 접미사
var styleSuffixes = map[Style]string{
	StyleRealistic: "photorealistic, high quality, detailed, beautiful person, professional photography",
	StyleAnime:     "anime style, high quality, detailed, beautiful character",
	StyleCartoon:   "cartoon style, vibrant colors, detailed, cute character",
	StyleFantasy:   "fantasy art style, magical, detailed, ethereal beauty",
}

// IsKnownStyle - 접미사 테이블에 있는 스타일인지
func IsKnownStyle(style Style) bool {
	_, ok := styleSuffixes[style]
	return ok
}

// EnhancePrompt - 스타일 접미사를 ", " 로 이어 붙인다.
// 알 수 없는 스타일이면 원본 prompt 를 그대로 반환.
func EnhancePrompt(prompt string, style Style) string {
	suffix, ok := styleSuffixes[style]
	if !ok {
		return prompt
	}
	return prompt + ", " + suffix
}
