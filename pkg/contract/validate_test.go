package contract

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullPayload = `{
  "tbsa": 18.5,
  "mechanism": "Heat",
  "type_of_accident": "domestic",
  "agent": "boiling water",
  "wildfire": false,
  "bonfire": null,
  "fireplace": null,
  "violence": null,
  "suicide_attempt": null,
  "escharotomy": true,
  "associated_trauma": ["head trauma"],
  "burns": [
    {
      "location": "hand",
      "laterality": "left",
      "depth": "2nd_degree_partial",
      "circumferencial": false,
      "provenance": "queimadura na mao esquerda"
    },
    {
      "location": "trunk",
      "laterality": null,
      "depth": null,
      "circumferencial": null,
      "provenance": null
    }
  ]
}`

func TestParseRecordFull(t *testing.T) {
	rec, err := ParseRecord([]byte(fullPayload))
	require.NoError(t, err)

	require.NotNil(t, rec.TBSA)
	assert.Equal(t, 18.5, *rec.TBSA)
	require.NotNil(t, rec.Mechanism)
	assert.Equal(t, MechanismHeat, *rec.Mechanism)
	require.NotNil(t, rec.Agent)
	assert.Equal(t, "boiling water", *rec.Agent)
	require.NotNil(t, rec.Wildfire)
	assert.False(t, *rec.Wildfire)
	assert.Nil(t, rec.Bonfire)
	assert.Equal(t, []string{"head trauma"}, rec.AssociatedTrauma)

	require.Len(t, rec.Burns, 2)
	assert.Equal(t, LocationHand, rec.Burns[0].Location)
	assert.Equal(t, LateralityLeft, rec.Burns[0].Laterality)
	assert.Equal(t, DepthSecondPartial, rec.Burns[0].Depth)
	assert.Equal(t, "queimadura na mao esquerda", rec.Burns[0].Provenance)
	// null 的可选属性解析为零值/缺省。
	assert.Equal(t, Laterality(""), rec.Burns[1].Laterality)
	assert.Nil(t, rec.Burns[1].Circumferential)
}

// 非法 JSON 统一映射为 ErrResponseInvalid。
func TestParseRecordMalformedJSON(t *testing.T) {
	for _, text := range []string{"", "not json", `[1,2]`, `{"tbsa": `} {
		_, err := ParseRecord([]byte(text))
		assert.ErrorIs(t, err, ErrResponseInvalid, text)
	}
}

// 每个缺失键都以路径形式出现在 ValidationError 里。
func TestParseRecordMissingKeys(t *testing.T) {
	_, err := ParseRecord([]byte(`{"tbsa": null}`))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Paths, "mechanism")
	assert.Contains(t, verr.Paths, "burns")
	assert.NotContains(t, verr.Paths, "tbsa")
}

// emptyRecord 返回全 null/空列表的合法最小对象，便于逐键替换。
func emptyRecord() map[string]string {
	return map[string]string{
		"tbsa": "null", "mechanism": "null", "type_of_accident": "null", "agent": "null",
		"wildfire": "null", "bonfire": "null", "fireplace": "null", "violence": "null",
		"suicide_attempt": "null", "escharotomy": "null",
		"associated_trauma": "[]", "burns": "[]",
	}
}

func renderRecord(fields map[string]string) []byte {
	var b strings.Builder
	b.WriteString("{")
	first := true
	for k, v := range fields {
		if !first {
			b.WriteString(",")
		}
		first = false
		fmt.Fprintf(&b, "%q: %s", k, v)
	}
	b.WriteString("}")
	return []byte(b.String())
}

func TestParseRecordViolations(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"tbsa above range", "tbsa", "140.0"},
		{"tbsa below range", "tbsa", "-1"},
		{"tbsa wrong type", "tbsa", `"many"`},
		{"mechanism out of domain", "mechanism", `"Explosion"`},
		{"accident out of domain", "type_of_accident", `"vacation"`},
		{"flag wrong type", "escharotomy", `"yes"`},
		{"trauma null not list", "associated_trauma", "null"},
		{"burns null not list", "burns", "null"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fields := emptyRecord()
			fields[tc.key] = tc.value
			_, err := ParseRecord(renderRecord(fields))
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Paths, tc.key)
		})
	}
}

func TestParseRecordInjuryViolations(t *testing.T) {
	payload := `{
  "tbsa": null, "mechanism": null, "type_of_accident": null, "agent": null,
  "wildfire": null, "bonfire": null, "fireplace": null, "violence": null,
  "suicide_attempt": null, "escharotomy": null,
  "associated_trauma": [],
  "burns": [
    {"location": "hand", "laterality": null, "depth": null, "circumferencial": null, "provenance": null},
    {"location": null, "laterality": "middle", "depth": "5th_degree", "circumferencial": null, "provenance": null},
    {"location": "hand"}
  ]
}`
	_, err := ParseRecord([]byte(payload))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Paths, "burns[1].location")
	assert.Contains(t, verr.Paths, "burns[1].laterality")
	assert.Contains(t, verr.Paths, "burns[1].depth")
	// 注入子实体的可选键同样必须在场。
	assert.Contains(t, verr.Paths, "burns[2].laterality")
	assert.NotContains(t, verr.Paths, "burns[0].location")
}

// 空列表保持 []（序列化为 [] 而非 null）。
func TestParseRecordEmptyListsStayEmpty(t *testing.T) {
	payload := `{
  "tbsa": null, "mechanism": null, "type_of_accident": null, "agent": null,
  "wildfire": null, "bonfire": null, "fireplace": null, "violence": null,
  "suicide_attempt": null, "escharotomy": null,
  "associated_trauma": [], "burns": []
}`
	rec, err := ParseRecord([]byte(payload))
	require.NoError(t, err)
	assert.NotNil(t, rec.AssociatedTrauma)
	assert.Empty(t, rec.AssociatedTrauma)
	assert.NotNil(t, rec.Burns)
	assert.Empty(t, rec.Burns)
}

func TestValidationErrorIsNotResponseInvalid(t *testing.T) {
	_, err := ParseRecord([]byte(`{"tbsa": null}`))
	assert.False(t, errors.Is(err, ErrResponseInvalid))
}
