package prompts

import (
	"strings"
	"testing"
)

func TestSearchQuery(t *testing.T) {
	got := SearchQuery("ferritin 12")
	if got != "Check all the information about medical questions ferritin 12" {
		t.Errorf("SearchQuery = %q", got)
	}
}

func TestInvestigationUserPrompt(t *testing.T) {
	got := InvestigationUserPrompt("low iron", "\n\nIron helps.")
	want := "Find information related with low iron in the context\n\nIron helps."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestActionPrompts(t *testing.T) {
	if !strings.HasSuffix(EmailUserPrompt(" take iron"), "plan to apply take iron") {
		t.Errorf("EmailUserPrompt = %q", EmailUserPrompt(" take iron"))
	}
	if !strings.HasSuffix(APIUserPrompt("title x"), "description title x") {
		t.Errorf("APIUserPrompt = %q", APIUserPrompt("title x"))
	}
}

func TestSynthesisPrompt(t *testing.T) {
	tests := []struct {
		name          string
		investigation string
		action        string
		contains      []string
	}{
		{"investigation only", "Ferritin is low.", "", []string{"\n Ferritin is low.\n\n"}},
		{"action only", "", "Email send to a@b.c", []string{"\n Email send to a@b.c\n\n"}},
		{"both", "Ferritin is low.", "Email send", []string{"Ferritin is low.\n\nEmail send"}},
		{"neither", "", "", []string{"friendly and positive way"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SynthesisPrompt(tt.investigation, tt.action)
			for _, c := range tt.contains {
				if !strings.Contains(got, c) {
					t.Errorf("prompt missing %q:\n%s", c, got)
				}
			}
		})
	}
}

func TestSummaryPrompt(t *testing.T) {
	got := SummaryPrompt("", "API call ok")
	if !strings.Contains(got, "Analysis_investigation: None,\naction_result = API call ok") {
		t.Errorf("SummaryPrompt = %q", got)
	}
	if !strings.Contains(got, "around 10 words") {
		t.Error("summary prompt lost its length instruction")
	}
}
