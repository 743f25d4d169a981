package errcode

import "errors"

// 错误码约定：
// - 0：无错误
// - 4xxx：业务可恢复类错误（调用方可提示用户修正或升级）
// - 5xxx：系统/上游错误（需要中断流程）
const (
	OK                  = 0
	UnsupportedFileType = 4001
	EmptyExtraction     = 4002
	ResumeParsingFailed = 4003
	ResourceMissing     = 4004
	ResumeQuotaExceeded = 4005
	AIQuotaExceeded     = 4006
	RateLimited         = 4029
	Unauthorized        = 4401
	SystemError         = 5000
	InvalidModelOutput  = 5001
	ServiceUnavailable  = 5003
)

// 哨兵错误与错误码一一对应，供各层 errors.Is 判断。
// 上游（模型/计费商）的原始错误只写日志，不向客户端透出。
var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrEmptyExtraction     = errors.New("extraction produced no usable text")
	ErrResumeParsingFailed = errors.New("resume parsing failed")
	ErrNotFound            = errors.New("resource not found")
	ErrResumeQuotaExceeded = errors.New("resume quota exceeded")
	ErrAIQuotaExceeded     = errors.New("ai generation quota exceeded")
	ErrRateLimited         = errors.New("rate limited by model provider")
	ErrUnauthorized        = errors.New("model provider rejected credentials")
	ErrInvalidModelOutput  = errors.New("model output is not valid json")
	ErrServiceUnavailable  = errors.New("model provider unavailable")
)

// Code 将哨兵错误映射为数值错误码，未知错误归为 SystemError。
func Code(err error) int {
	switch {
	case err == nil:
		return OK
	case errors.Is(err, ErrUnsupportedFileType):
		return UnsupportedFileType
	case errors.Is(err, ErrEmptyExtraction):
		return EmptyExtraction
	case errors.Is(err, ErrResumeParsingFailed):
		return ResumeParsingFailed
	case errors.Is(err, ErrNotFound):
		return ResourceMissing
	case errors.Is(err, ErrResumeQuotaExceeded):
		return ResumeQuotaExceeded
	case errors.Is(err, ErrAIQuotaExceeded):
		return AIQuotaExceeded
	case errors.Is(err, ErrRateLimited):
		return RateLimited
	case errors.Is(err, ErrUnauthorized):
		return Unauthorized
	case errors.Is(err, ErrInvalidModelOutput):
		return InvalidModelOutput
	case errors.Is(err, ErrServiceUnavailable):
		return ServiceUnavailable
	default:
		return SystemError
	}
}
