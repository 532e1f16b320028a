package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestMatch(t *testing.T) {
	assert.Equal(t, language.Korean, Match(""))
	assert.Equal(t, language.English, Match("en-US,en;q=0.9"))
	assert.Equal(t, language.Korean, Match("ko-KR"))
	assert.Equal(t, language.Korean, Match("not a header;;"))
}

func TestMessageFallsBack(t *testing.T) {
	assert.Equal(t, "정원이 마감되었습니다.", Message("CAPACITY_EXCEEDED", language.Korean, "full"))
	assert.Equal(t, "This session is full.", Message("CAPACITY_EXCEEDED", language.English, "full"))
	assert.Equal(t, "custom", Message("SOMETHING_ELSE", language.English, "custom"))
}
