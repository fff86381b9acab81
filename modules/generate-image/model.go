package generateimage

// Style - 프롬프트 스타일 태그
type Style string

const (
	StyleRealistic Style = "realistic"
	StyleAnime     Style = "anime"
	StyleCartoon   Style = "cartoon"
	StyleFantasy   Style = "fantasy"
)

const (
	DefaultWidth  = 1024
	DefaultHeight = 1024

	// flux schnell 권장 steps
	DefaultInferenceSteps = 4
)

// GenerationRequest - 호출자 입력 (prompt + style + 크기)
type GenerationRequest struct {
	Prompt string `json:"prompt"`
	Style  Style  `json:"style,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Normalize - 기본값 적용. style 이 비어 있으면 realistic, 크기가 0 이면 1024.
// 알 수 없는 style 은 그대로 둔다.
func (r GenerationRequest) Normalize() GenerationRequest {
	if r.Style == "" {
		r.Style = StyleRealistic
	}
	if r.Width == 0 {
		r.Width = DefaultWidth
	}
	if r.Height == 0 {
		r.Height = DefaultHeight
	}
	return r
}

// Validate - 네트워크 호출 전 입력 검증
func (r GenerationRequest) Validate() error {
	if r.Prompt == "" {
		return &ValidationError{Field: "prompt", Reason: "Prompt is required"}
	}
	if r.Width < 0 {
		return &ValidationError{Field: "width", Reason: "width must be greater than 0"}
	}
	if r.Height < 0 {
		return &ValidationError{Field: "height", Reason: "height must be greater than 0"}
	}
	return nil
}

// Submission - provider 로 보내는 요청 (enhanced prompt 적용 후)
type Submission struct {
	Prompt         string
	Width          int
	Height         int
	InferenceSteps int
	RandomizeSeed  bool
}

// JobHandle - provider 가 돌려준 job 참조. poll loop 밖으로 나가지 않는다.
type JobHandle struct {
	ID        string
	StatusURL string
	CancelURL string
}

// JobState - provider job 상태
type JobState int

const (
	JobPending JobState = iota
	JobRunning
	JobSucceeded
	JobFailed
)

func (s JobState) String() string {
	switch s {
	case JobPending:
		return "pending"
	case JobRunning:
		return "running"
	case JobSucceeded:
		return "succeeded"
	case JobFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal - Succeeded / Failed 이후에는 전이가 없다
func (s JobState) IsTerminal() bool {
	return s == JobSucceeded || s == JobFailed
}

// JobStatus - 한 번의 status 조회 결과
type JobStatus struct {
	State     JobState
	Artifacts []string // JobSucceeded 일 때만
	Reason    string   // JobFailed 일 때만
	Raw       string   // provider 가 보낸 원본 status 문자열
}

// GenerationResult - 호출자에게 노출되는 유일한 결과
type GenerationResult struct {
	Success  bool   `json:"success"`
	ImageURL string `json:"imageUrl"`
}
