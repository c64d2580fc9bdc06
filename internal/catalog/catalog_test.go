package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTimeSlots(t *testing.T) {
	slots := Default().TimeSlots()

	require.Len(t, slots, 18)
	assert.Equal(t, "08:00 AM", slots[0])
	assert.Equal(t, "11:30 AM", slots[7])
	assert.Equal(t, "01:00 PM", slots[8])
	assert.Equal(t, "05:30 PM", slots[17])
	assert.NotContains(t, slots, "12:00 PM")
}

func TestNew_RejectsEmptyRoster(t *testing.T) {
	_, err := New(nil, DefaultTimeSlots, nil)
	assert.ErrorIs(t, err, ErrNoProviders)

	_, err = New(DefaultProviders, nil, nil)
	assert.ErrorIs(t, err, ErrNoTimeSlots)
}

func TestCatalog_IsImmutable(t *testing.T) {
	providers := []string{"Dr. Lee", "Dr. Kim"}
	c, err := New(providers, []string{"08:00 AM"}, DefaultServices)
	require.NoError(t, err)

	providers[0] = "Dr. Mallory"
	assert.True(t, c.HasProvider("Dr. Lee"))
	assert.False(t, c.HasProvider("Dr. Mallory"))

	got := c.Providers()
	got[1] = "changed"
	assert.Equal(t, []string{"Dr. Lee", "Dr. Kim"}, c.Providers())

	svc := c.Services()
	svc[0].Items[0].Name = "changed"
	assert.NotEqual(t, "changed", c.Services()[0].Items[0].Name)
}

func TestCatalog_Lookups(t *testing.T) {
	c := Default()

	assert.True(t, c.HasProvider("Dr. Jograd Ballesteros"))
	assert.False(t, c.HasProvider("dr. jograd ballesteros"))
	assert.True(t, c.HasTimeSlot("02:30 PM"))
	assert.False(t, c.HasTimeSlot("12:30 PM"))
	assert.Len(t, c.Services(), 4)
}
