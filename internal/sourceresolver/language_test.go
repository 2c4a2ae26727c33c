package sourceresolver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"subtitle-pipeline/internal/model"
)

func TestDetectLanguageCJKTitleWins(t *testing.T) {
	assert.Equal(t, "zh", DetectLanguage("测试视频", nil, nil, ""))
}

func TestDetectLanguageLatinTitleWins(t *testing.T) {
	assert.Equal(t, "en", DetectLanguage("A great tutorial today", nil, nil, ""))
}

func TestDetectLanguageFallsBackToManualSubs(t *testing.T) {
	assert.Equal(t, "zh", DetectLanguage(".", []string{"zh-Hans"}, nil, ""))
	assert.Equal(t, "en", DetectLanguage(".", []string{"en"}, nil, ""))
}

func TestDetectLanguageAutoEnOrigBeforePlainEn(t *testing.T) {
	assert.Equal(t, "en", DetectLanguage(".", nil, []string{"en-orig", "fr"}, ""))
}

func TestDetectLanguageFallsBackToLanguageField(t *testing.T) {
	assert.Equal(t, "zh", DetectLanguage(".", nil, nil, "zh-CN"))
	assert.Equal(t, "en", DetectLanguage(".", nil, nil, "en-US"))
}

func TestDetectLanguageNullWhenNothingMatches(t *testing.T) {
	assert.Equal(t, "", DetectLanguage(".", nil, nil, "fr"))
}

func TestSelectStrategyChineseRequiresManualSubs(t *testing.T) {
	mode, err := SelectStrategy("zh", []string{"zh-Hans"}, nil)
	assert := assert.New(t)
	assert.NoError(err)
	assert.Equal(model.ModeSubtitle, mode)

	mode, err = SelectStrategy("zh", nil, []string{"zh"})
	assert.NoError(err)
	assert.Equal(model.ModeTranscribe, mode)
}

func TestSelectStrategyEnglishAcceptsAutoSubs(t *testing.T) {
	mode, err := SelectStrategy("en", nil, []string{"en"})
	assert.NoError(t, err)
	assert.Equal(t, model.ModeSubtitle, mode)
}

func TestSelectStrategyUnknownLanguageErrors(t *testing.T) {
	_, err := SelectStrategy("", nil, nil)
	assert.Error(t, err)
}

func TestSubtitlePriorityEnglishPrefersOrigSlot(t *testing.T) {
	assert.Equal(t, []string{"en-orig", "en"}, SubtitlePriority("en", []string{"en-orig"}))
	assert.Equal(t, []string{"en"}, SubtitlePriority("en", []string{"en"}))
}

func TestRankFormatOrdersSrtFirst(t *testing.T) {
	assert.Less(t, rankFormat("srt"), rankFormat("vtt"))
	assert.Less(t, rankFormat("json3"), rankFormat("ttml"))
}
