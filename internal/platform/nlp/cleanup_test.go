package nlp

import "testing"

func TestCleanNarrative(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"sentinel passes through", "-", "-"},
		{"empty passes through", "", ""},
		{"x before capitalized word", "Hello x World", "Hello. World"},
		{"x before lowercase starter", "patient is fine x no issues", "Patient is fine. No issues"},
		{"dimensions preserved", "Wound is 4 x 3 cm", "Wound is 4 x 3 cm"},
		{"three dimensions preserved", "Size 4 x 3 x 0.5 cm", "Size 4 x 3 x 0.5 cm"},
		{"frequency preserved", "Apply TID x 7 days", "Apply TID x 7 days"},
		{"count preserved", "Medihoney x 3", "Medihoney x 3"},
		{"trailing x becomes period", "End of note x", "End of note."},
		{"dry quartz mishearing", "Apply dry quartz", "Apply dry gauze"},
		{"rejuvenation mishearing", "Encourage rejuvenation", "Encourage elevation"},
		{"alginate mishearing", "calcium alkenate dressing", "Calcium alginate dressing"},
		{"mild honey mishearing", "Apply mild honey x 3", "Apply Medihoney x 3"},
		{"education garble", "Education 3 x Forced", "Education was reinforced"},
		{
			"chained separators",
			"Cleaned wound x Applied dry quartz x Continue current care",
			"Cleaned wound. Applied dry gauze. Continue current care",
		},
		{
			"period before separator",
			"Wound healing well. x No drainage",
			"Wound healing well. No drainage",
		},
		{"sentence casing", "wound is clean", "Wound is clean"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CleanNarrative(tc.in); got != tc.want {
				t.Errorf("CleanNarrative(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
