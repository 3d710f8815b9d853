package forum

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSighting() SightingForm {
	return SightingForm{
		ReporterName: "Mara",
		ReportType:   "ghost",
		WhatSighted:  "a pale figure on the stairs",
		OccurredAt:   "2026-10-13T23:10",
		Location:     "Old mill",
	}
}

func TestSightingFormRules(t *testing.T) {
	cases := []struct {
		name  string
		edit  func(f *SightingForm)
		field string
		msg   string
	}{
		{"valid", func(f *SightingForm) {}, "", ""},
		{"name missing", func(f *SightingForm) { f.ReporterName = "" }, "ReporterName", msgReporterName},
		{"name short", func(f *SightingForm) { f.ReporterName = "M" }, "ReporterName", msgReporterName},
		{"bad type", func(f *SightingForm) { f.ReportType = "ufo" }, "ReportType", msgReportType},
		{"empty type", func(f *SightingForm) { f.ReportType = "" }, "ReportType", msgReportType},
		{"nine chars", func(f *SightingForm) { f.WhatSighted = "123456789" }, "WhatSighted", msgWhatSighted},
		{"ten chars", func(f *SightingForm) { f.WhatSighted = "1234567890" }, "", ""},
		{"no time", func(f *SightingForm) { f.OccurredAt = "" }, "OccurredAt", msgOccurredAt},
		{"short location", func(f *SightingForm) { f.Location = "x" }, "Location", msgLocation},
		{"first rule wins", func(f *SightingForm) {
			f.ReporterName = ""
			f.ReportType = "ufo"
			f.Location = ""
		}, "ReporterName", msgReporterName},
		{"second rule wins over later", func(f *SightingForm) {
			f.ReportType = "ufo"
			f.WhatSighted = "short"
		}, "ReportType", msgReportType},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := validSighting()
			c.edit(&f)
			err := f.Validate()
			if c.msg == "" {
				assert.NoError(t, err)
				return
			}
			var formErr *FormError
			require.ErrorAs(t, err, &formErr)
			assert.Equal(t, c.field, formErr.Field)
			assert.Equal(t, c.msg, formErr.Message)
		})
	}
}

func TestSightingFormBlankOptionals(t *testing.T) {
	s := validSighting().Sighting()
	assert.Nil(t, s.Contact)
	assert.Nil(t, s.SubjectChoice)

	f := validSighting()
	f.Contact = "mara@example.com"
	s = f.Sighting()
	require.NotNil(t, s.Contact)
	assert.Equal(t, "mara@example.com", *s.Contact)
}

func TestParseSightingFormTrims(t *testing.T) {
	form := url.Values{
		"reporter_name": {"  Mara  "},
		"report_type":   {" animal "},
		"what_sighted":  {"   fox   "},
		"contact":       {"   "},
	}
	r := httptest.NewRequest(http.MethodPost, "/report", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	f := ParseSightingForm(r)
	assert.Equal(t, "Mara", f.ReporterName)
	assert.Equal(t, "animal", f.ReportType)
	assert.Equal(t, "fox", f.WhatSighted)
	assert.Equal(t, "", f.Contact)
}

func TestTopicFormRules(t *testing.T) {
	cases := []struct {
		title, content string
		ok             bool
	}{
		{"Hello", "World!", true},
		{"Hi", "World!", false},
		{"Hello", "no", false},
		{"Héé", "ÿüç", true},
		{"日本", "日本語", false},
		{"日本語", "日本語", true},
	}
	for i, c := range cases {
		err := TopicForm{Title: c.title, Content: c.content}.Validate()
		if c.ok {
			assert.NoError(t, err, "case %d", i)
		} else {
			assert.EqualError(t, err, msgTopicTooShort, "case %d", i)
		}
	}
}

func TestReplyFormRules(t *testing.T) {
	assert.EqualError(t, ReplyForm{Content: ""}.Validate(), msgReplyEmpty)
	assert.EqualError(t, ReplyForm{Content: "k"}.Validate(), msgReplyEmpty)
	assert.NoError(t, ReplyForm{Content: "ok"}.Validate())
	assert.NoError(t, ReplyForm{Content: "日本"}.Validate())
	assert.EqualError(t, ReplyForm{Content: "日"}.Validate(), msgReplyEmpty)
}

func TestRegisterFormRules(t *testing.T) {
	cases := []struct {
		form RegisterForm
		msg  string
	}{
		{RegisterForm{"ann", "ann@example.com", "longenough"}, ""},
		{RegisterForm{"an", "ann@example.com", "longenough"}, msgUsernameShort},
		{RegisterForm{"ann", "ann.example.com", "longenough"}, msgEmailInvalid},
		{RegisterForm{"ann", "ann@example.com", "short"}, msgPasswordShort},
		{RegisterForm{"an", "bad", "short"}, msgUsernameShort},
	}
	for i, c := range cases {
		err := c.form.Validate()
		if c.msg == "" {
			assert.NoError(t, err, "case %d", i)
			continue
		}
		assert.EqualError(t, err, c.msg, "case %d", i)
	}
}

func TestClampText(t *testing.T) {
	assert.Equal(t, "short", clampText("short", 80))
	long := strings.Repeat("x", 100)
	got := clampText(long, 80)
	assert.Equal(t, 80, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "…"))
}
