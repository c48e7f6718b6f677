package nlp

import "fmt"

// abbreviationGlossary expands the shorthand providers dictate so the model
// does not guess at it. Rendered as a markdown list inside the prompts.
var abbreviationGlossary = [][2]string{
	{"NPWT", "Negative Pressure Wound Therapy"},
	{"MIST", "low-frequency ultrasound therapy"},
	{"DFU", "Diabetic Foot Ulcer"},
	{"VLU", "Venous Leg Ulcer"},
	{"PU", "Pressure Ulcer"},
	{"s/p", "status post"},
	{"BID", "twice daily"},
	{"TID", "three times daily"},
	{"QD", "once daily"},
	{"PRN", "as needed"},
	{"WNL", "within normal limits"},
	{"ROM", "range of motion"},
	{"SNF", "Skilled Nursing Facility"},
}

func glossaryMarkdown() string {
	out := ""
	for _, entry := range abbreviationGlossary {
		out += fmt.Sprintf("- %s: %s\n", entry[0], entry[1])
	}
	return out
}

const extractionPromptTemplate = `You are a clinical transcription parser for Wound Care.
Extract structured data from the following transcript into JSON.

MANDATORY:
1. Everything in the output JSON must be strictly in English.
2. If a clinical attribute is NOT mentioned in the transcript, use "-" as the
   value. Strictly do not use "N/A", "Unknown", or "Not specified".
3. Never guess, infer, assume, or auto-correct clinical meaning. If something
   is unclear, use "-". Capture only what the provider dictated.

NEGATION HANDLING:
"No", "Not", "None", "Negative", "Not performed", "Not used", "Without" mean
the attribute is absent as spoken. "No MIST therapy" means mist_therapy = "No".

WOUND SEGMENTATION:
A new wound begins only when the provider says "Wound 1", "Wound 2", and so
on. Do not merge wounds and do not invent wounds.

MEASUREMENT RULE:
Only capture measurements explicitly spoken as dimensions, normalized to the
form "L x W x D cm" ("4 by 3 by 0.5 centimeters" becomes "4 x 3 x 0.5 cm").
If depth is not spoken, leave it out; never assume depth = 0.

CONTROLLED CALCULATION (the only permitted derivation):
If and only if all three of length, width and depth are dictated:
  area_sq_cm = length * width
  volume_cu_cm = length * width * depth
If the provider states an area or volume, use the dictated value and do not
recalculate. If any dimension is missing, both derived fields stay "-",
unless the provider explicitly marks a two-dimension reading as a surface
measurement, in which case area alone may be computed. Do not round. Output
numeric values only, without units.

PROCEDURE vs PLAN:
Map to "procedure" only explicit statements such as "debridement performed"
or "no debridement". Offloading, positioning, boots, pillows, dressings and
routine care belong in the narrative clinical_summary, not in "procedure".

ABBREVIATIONS:
%s

OUTPUT SHAPE (one JSON object, no markdown):
{
  "patient_information": {"patient_name": "-", "dob": "-",
    "date_of_service": "-", "physician": "-", "transcriptionist": "-",
    "facility": "-"},
  "wounds": [{"number": "1", "mist_therapy": "-", "location": "-",
    "outcome": "-", "type": "-", "status": "-", "measurements": "-",
    "area_sq_cm": "-", "volume_cu_cm": "-", "tunnels": "-", "max_depth": "-",
    "undermining": "-", "stage_grade": "-", "drainage": "-",
    "exudate_type": "-", "odor": "-", "wound_margin": "-", "periwound": "-",
    "necrotic_material": "-", "granulation": "-", "tissue_exposed": "-",
    "procedure": "-", "clinical_summary": "-", "treatment_plan": "-"}],
  "provider_comments": "",
  "treatment_plan": ""
}

TRANSCRIPT:
%s
`

// ExtractionPrompt builds the full-dictation prompt.
func ExtractionPrompt(transcript string) string {
	return fmt.Sprintf(extractionPromptTemplate, glossaryMarkdown(), transcript)
}

const addendumPromptTemplate = `You are a clinical records assistant for Wound Care.
Given the current structured record and an addendum dictation, produce an
RFC 6902 JSON Patch (a JSON array of operations) that updates the record.

RULES:
1. Paths are relative to the record root: /patient_info, /wounds, /comments,
   /plan. Wounds are addressed by array index, for example
   /wounds/0/max_depth. Append a new wound with the path /wounds/-.
2. Only change what the addendum dictates. If the addendum changes nothing,
   return [].
3. Use "-" for attributes the addendum declares absent. Never use "N/A" or
   "Unknown".
4. If the addendum provides new measurements, replace the "measurements"
   field with the newly dictated value. Recompute area_sq_cm and
   volume_cu_cm only when all of length, width and depth are present in the
   addendum; otherwise set them to "-". Never preserve a calculated value
   once its measurements have changed, and never recompute from old
   measurements. If the provider dictates an area or volume outright, use it.
5. Leave derived values untouched for wounds whose measurements the addendum
   does not mention.

ABBREVIATIONS:
%s

CURRENT RECORD:
%s

ADDENDUM:
%s

Output only the JSON array, no markdown.
`

// AddendumPrompt builds the patch-generation prompt.
func AddendumPrompt(currentJSON, transcript string) string {
	return fmt.Sprintf(addendumPromptTemplate, glossaryMarkdown(), currentJSON, transcript)
}
