// Package i18n renders user-facing error messages in the caller's language.
package i18n

import (
	"golang.org/x/text/language"
)

// DefaultTag is used when Accept-Language is missing or unsupported.
var DefaultTag = language.Korean

var supported = []language.Tag{language.Korean, language.English}

var matcher = language.NewMatcher(supported)

var catalog = map[string]map[language.Tag]string{
	"NOT_FOUND": {
		language.Korean:  "요청한 정보를 찾을 수 없습니다.",
		language.English: "The requested resource was not found.",
	},
	"INVALID_STATE": {
		language.Korean:  "현재 상태에서는 요청을 처리할 수 없습니다.",
		language.English: "This action is not allowed in the current state.",
	},
	"QUOTA_EXHAUSTED": {
		language.Korean:  "수강권의 잔여 횟수가 없습니다.",
		language.English: "No sessions remain on this ticket.",
	},
	"OUT_OF_VALIDITY": {
		language.Korean:  "수강권 유효기간이 아닙니다.",
		language.English: "This ticket is not valid today.",
	},
	"TICKET_CLASS_MISMATCH": {
		language.Korean:  "이 수강권으로는 해당 수업을 예약할 수 없습니다.",
		language.English: "This ticket cannot be used for this class.",
	},
	"DUPLICATE_BOOKING": {
		language.Korean:  "이미 예약한 수업입니다.",
		language.English: "You have already booked this session.",
	},
	"CAPACITY_EXCEEDED": {
		language.Korean:  "정원이 마감되었습니다.",
		language.English: "This session is full.",
	},
	"ALREADY_CANCELLED": {
		language.Korean:  "이미 취소된 예약입니다.",
		language.English: "This booking has already been cancelled.",
	},
	"ALREADY_COMPLETED": {
		language.Korean:  "이미 완료된 예약은 변경할 수 없습니다.",
		language.English: "Completed bookings cannot be changed.",
	},
	"STORAGE_UNAVAILABLE": {
		language.Korean:  "일시적인 오류가 발생했습니다. 잠시 후 다시 시도해 주세요.",
		language.English: "The operation failed. Please try again.",
	},
	"SWEEP_IN_PROGRESS": {
		language.Korean:  "자동 완료 작업이 이미 실행 중입니다.",
		language.English: "A sweep is already running.",
	},
	"FORBIDDEN": {
		language.Korean:  "권한이 없습니다.",
		language.English: "You do not have permission to do this.",
	},
	"UNAUTHORIZED": {
		language.Korean:  "로그인이 필요합니다.",
		language.English: "Authentication is required.",
	},
}

// Match resolves an Accept-Language header to a supported tag.
func Match(acceptLanguage string) language.Tag {
	if acceptLanguage == "" {
		return DefaultTag
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return DefaultTag
	}
	_, idx, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return DefaultTag
	}
	return supported[idx]
}

// Message returns the localized message for code, or fallback when the code
// has no catalog entry.
func Message(code string, tag language.Tag, fallback string) string {
	entries, ok := catalog[code]
	if !ok {
		return fallback
	}
	if msg, ok := entries[tag]; ok {
		return msg
	}
	if msg, ok := entries[DefaultTag]; ok {
		return msg
	}
	return fallback
}
