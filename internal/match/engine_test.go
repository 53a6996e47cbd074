package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formease/pkg/model"
)

func field(id string, mutate func(f *model.FieldDescriptor)) *model.FieldDescriptor {
	f := &model.FieldDescriptor{ID: id, Kind: model.KindText}
	if mutate != nil {
		mutate(f)
	}
	f.ComputeIdentifier()
	return f
}

func TestMatch_ExactName(t *testing.T) {
	f := field("email", func(f *model.FieldDescriptor) { f.Name = "email" })

	got := New(nil).Match([]*model.FieldDescriptor{f}, map[string]string{"email": "a@b.com"}, nil)

	require.Len(t, got, 1)
	assert.Equal(t, "email", got[0].DataKey)
	assert.Equal(t, "a@b.com", got[0].Value)
	assert.Equal(t, builtins["email"].Priority*10, got[0].Confidence)
	assert.Same(t, f, got[0].Field)
}

func TestScore_RuleWeights(t *testing.T) {
	m := model.NewAliasMapping(7, "postal code")

	tests := []struct {
		name string
		f    *model.FieldDescriptor
		want int
		rule Rule
	}{
		{
			name: "exact label",
			f:    field("a", func(f *model.FieldDescriptor) { f.Label = "Postal Code" }),
			want: 70,
			rule: RuleExact,
		},
		{
			name: "substring of identifier",
			f:    field("b", func(f *model.FieldDescriptor) { f.Placeholder = "your postal code here" }),
			want: 56,
			rule: RuleSubstring,
		},
		{
			name: "word boundary on label",
			f:    field("c", func(f *model.FieldDescriptor) { f.AriaLabel = "Code (postal)" }),
			want: 49,
			rule: RuleWordBoundary,
		},
		{
			name: "no signal",
			f:    field("d", func(f *model.FieldDescriptor) { f.Name = "comments" }),
			want: 0,
			rule: RuleNone,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rule := Score(tt.f, "postalCode", m)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.rule, rule)
		})
	}
}

func TestScore_ExactBeatsSubstringForAnyPriority(t *testing.T) {
	for p := 1; p <= 20; p++ {
		m := model.NewAliasMapping(p, "city")
		exact := field("x", func(f *model.FieldDescriptor) { f.Name = "city" })
		sub := field("y", func(f *model.FieldDescriptor) { f.Name = "billing_city_field" })

		es, _ := Score(exact, "custom", m)
		ss, _ := Score(sub, "custom", m)
		assert.Equal(t, p*10, es)
		assert.Equal(t, p*8, ss)
		assert.Greater(t, es, ss)
	}
}

func TestScore_SemanticKeyword(t *testing.T) {
	f := field("q1", func(f *model.FieldDescriptor) { f.Label = "Where can we reach you by e-mail" })
	got, rule := Score(f, "email", model.NewAliasMapping(10, "zzz"))
	assert.Equal(t, 90, got)
	assert.Equal(t, RuleSemantic, rule)
}

func TestMatch_CustomTableReplacesBuiltins(t *testing.T) {
	custom := map[string]model.AliasMapping{
		"company": model.NewAliasMapping(0, "employer"),
	}
	email := field("f1", func(f *model.FieldDescriptor) { f.Name = "email" })
	given := field("f2", func(f *model.FieldDescriptor) { f.Name = "first name" })
	data := map[string]string{"email": "a@b.com", "firstName": "Ada"}

	got := New(nil).Match([]*model.FieldDescriptor{email, given}, data, custom)
	require.Len(t, got, 2)
	assert.Equal(t, "email", got[0].DataKey)
	assert.Equal(t, 10*semanticWeight, got[0].Confidence, "only the semantic rule applies outside the custom set")
	assert.Equal(t, "firstName", got[1].DataKey)
	assert.Equal(t, 9*semanticWeight, got[1].Confidence)

	pet := field("f3", func(f *model.FieldDescriptor) { f.Name = "favouriteColour" })
	got = New(nil).Match([]*model.FieldDescriptor{pet}, map[string]string{"favouriteColour": "blue"}, custom)
	assert.Empty(t, got, "key name is not an alias while a custom table is active")

	got = New(nil).Match([]*model.FieldDescriptor{pet}, map[string]string{"favouriteColour": "blue"}, nil)
	require.Len(t, got, 1)
	assert.Equal(t, DefaultPriority*10, got[0].Confidence)

	work := field("f4", func(f *model.FieldDescriptor) { f.Label = "Employer" })
	got = New(nil).Match([]*model.FieldDescriptor{work}, map[string]string{"company": "Acme"}, custom)
	require.Len(t, got, 1)
	assert.Equal(t, 7*10, got[0].Confidence)
}

func TestActiveTable_InheritsBuiltinPriority(t *testing.T) {
	table := ActiveTable(map[string]model.AliasMapping{
		"email":  model.NewAliasMapping(0, "MAIL"),
		"pet":    model.NewAliasMapping(0, "pet"),
		"urgent": model.NewAliasMapping(3, "urgent"),
	})
	assert.True(t, table.Custom())

	_, m, ok := table.Lookup("email")
	require.True(t, ok)
	assert.Equal(t, 10, m.Priority)
	assert.Equal(t, []string{"mail"}, m.Aliases)

	_, m, ok = table.Lookup("pet")
	require.True(t, ok)
	assert.Equal(t, DefaultPriority, m.Priority)

	_, m, ok = table.Lookup("urgent")
	require.True(t, ok)
	assert.Equal(t, 3, m.Priority)

	_, _, ok = table.Lookup("phone")
	assert.False(t, ok)
}

func TestTable_LookupNormalizesKeys(t *testing.T) {
	table := ActiveTable(nil)
	assert.False(t, table.Custom())

	canon, m, ok := table.Lookup("first_name")
	require.True(t, ok)
	assert.Equal(t, "firstName", canon)
	assert.Equal(t, 9, m.Priority)

	canon, _, ok = table.Lookup("favouriteColour")
	assert.False(t, ok)
	assert.Equal(t, "favouriteColour", canon)
	assert.Equal(t, []string{"favouritecolour", "favourite colour"}, KeyMapping("favouriteColour").Aliases)
}

func TestMatch_StableOrderAndReuse(t *testing.T) {
	a := field("a", func(f *model.FieldDescriptor) { f.Placeholder = "primary email please" })
	b := field("b", func(f *model.FieldDescriptor) { f.Placeholder = "backup email please" })
	c := field("c", func(f *model.FieldDescriptor) { f.Name = "email" })
	d := field("d", func(f *model.FieldDescriptor) { f.Name = "notes" })

	got := New(nil).Match([]*model.FieldDescriptor{a, b, c, d}, map[string]string{"email": "a@b.com"}, nil)

	require.Len(t, got, 3)
	assert.Equal(t, "c", got[0].Field.ID)
	assert.Equal(t, "a", got[1].Field.ID)
	assert.Equal(t, "b", got[2].Field.ID)
	for _, c := range got {
		assert.Equal(t, "email", c.DataKey)
	}
}

func TestMatch_SkipsEmptyValues(t *testing.T) {
	f := field("f", func(f *model.FieldDescriptor) { f.Name = "city" })
	got := New(nil).Match([]*model.FieldDescriptor{f}, map[string]string{"city": "  "}, nil)
	assert.Empty(t, got)
}

func TestSplitWords(t *testing.T) {
	assert.Equal(t, []string{"date", "of", "birth"}, splitWords("dateOfBirth"))
	assert.Equal(t, []string{"zip", "code"}, splitWords("zip_code"))
	assert.Equal(t, []string{"linked", "in"}, splitWords("linkedIn"))
}
