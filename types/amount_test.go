package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    Amount
		wantErr bool
	}{
		{in: "100", want: 10000},
		{in: "100.00", want: 10000},
		{in: "100.5", want: 10050},
		{in: " 0.01 ", want: 1},
		{in: ".75", want: 75},
		{in: "+3", want: 300},
		{in: "-5", want: -500},
		{in: "", wantErr: true},
		{in: "-", wantErr: true},
		{in: "1.", wantErr: true},
		{in: "1.234", wantErr: true},
		{in: "1e3", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "1,50", wantErr: true},
		{in: "99999999999999999999", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseAmount(tc.in)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestAmount_String(t *testing.T) {
	assert.Equal(t, "400.00", Amount(40000).String())
	assert.Equal(t, "0.05", Amount(5).String())
	assert.Equal(t, "-1.50", Amount(-150).String())
}

func TestAmount_JSON(t *testing.T) {
	var body struct {
		A Amount `json:"a"`
		B Amount `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"100.00","b":12.5}`), &body))
	assert.Equal(t, Amount(10000), body.A)
	assert.Equal(t, Amount(1250), body.B)

	out, err := json.Marshal(body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"100.00","b":"12.50"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"a":"ten"}`), &body))
}

func TestAmount_Scan(t *testing.T) {
	var a Amount
	require.NoError(t, a.Scan([]byte("500.00")))
	assert.Equal(t, Amount(50000), a)

	require.NoError(t, a.Scan("42.10"))
	assert.Equal(t, Amount(4210), a)

	assert.Error(t, a.Scan(1.5))

	v, err := Amount(15000).Value()
	require.NoError(t, err)
	assert.Equal(t, "150.00", v)
}
