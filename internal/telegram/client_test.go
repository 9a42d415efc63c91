package telegram

import (
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/wealthstack/internal/models"
)

type fakeBot struct {
	fails int
	sent  []tgbotapi.MessageConfig
	calls int
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.calls++
	if b.calls <= b.fails {
		return tgbotapi.Message{}, errors.New("flood control")
	}
	b.sent = append(b.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"$12.5B", "$12\\.5B"},
		{"(50%)", "\\(50%\\)"},
		{"a_b-c!", "a\\_b\\-c\\!"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, escapeMarkdownV2(tt.in))
	}
}

func sampleRecords() []models.Record {
	return []models.Record{
		{Year: 2009, Category: models.CategoryTechnology, Metric: 500, Name: "Old"},
		{Year: 2010, Category: models.CategoryTechnology, Metric: 60, Name: "Alice"},
		{Year: 2010, Category: models.CategoryTechnology, Metric: 30, Name: "Bob"},
		{Year: 2010, Category: models.CategoryTechnology, Metric: 10, Name: "Carl"},
		{Year: 2010, Category: models.CategoryOther, Metric: 100, Name: "Dana"},
	}
}

func TestBuildDigest(t *testing.T) {
	d, err := BuildDigest(sampleRecords(), models.CategoryTechnology, 2)
	require.NoError(t, err)

	assert.Equal(t, 2010, d.Year)
	assert.Equal(t, 200.0, d.Total)
	require.Len(t, d.Shares, 2)
	assert.Equal(t, Share{Category: models.CategoryTechnology, Value: 100, Percent: 50}, d.Shares[0])

	require.Len(t, d.Top, 3)
	assert.Equal(t, "Alice", d.Top[0].Name)
	assert.Equal(t, "Bob", d.Top[1].Name)
	assert.True(t, d.Top[2].Synthetic)
	assert.Equal(t, 10.0, d.Top[2].Metric)
}

func TestBuildDigestEmpty(t *testing.T) {
	d, err := BuildDigest(nil, models.CategoryTechnology, 7)
	require.NoError(t, err)
	assert.Zero(t, d.Year)
	assert.Contains(t, formatMessage(d), "No data loaded")
}

func TestFormatMessage(t *testing.T) {
	d, err := BuildDigest(sampleRecords(), models.CategoryTechnology, 2)
	require.NoError(t, err)

	msg := formatMessage(d)
	assert.Contains(t, msg, "Year: *2010*")
	assert.Contains(t, msg, "Technology: $100\\.0B \\(50\\.0%\\)")
	assert.Contains(t, msg, "1\\. Alice: $60\\.0B")
	assert.Contains(t, msg, "3\\. Others: $10\\.0B")
}

func TestSendRetries(t *testing.T) {
	bot := &fakeBot{fails: 2}
	c, err := newClient(bot, "42", 3, time.Millisecond)
	require.NoError(t, err)

	require.NoError(t, c.Send(Digest{}))
	assert.Equal(t, 3, bot.calls)
	require.Len(t, bot.sent, 1)
	assert.Equal(t, int64(42), bot.sent[0].ChatID)
	assert.Equal(t, tgbotapi.ModeMarkdownV2, bot.sent[0].ParseMode)
}

func TestSendGivesUp(t *testing.T) {
	bot := &fakeBot{fails: 10}
	c, err := newClient(bot, "42", 2, time.Millisecond)
	require.NoError(t, err)

	assert.ErrorContains(t, c.Send(Digest{}), "after 2 retries")
	assert.Equal(t, 2, bot.calls)
}

func TestInvalidChatID(t *testing.T) {
	_, err := newClient(&fakeBot{}, "not-a-number", 1, time.Millisecond)
	assert.Error(t, err)
}
