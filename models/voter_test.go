package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCitizenValidate(t *testing.T) {
	valid := Citizen{CNP: "1234567890123", FirstName: "John", LastName: "Doe"}
	assert.NoError(t, valid.Validate())

	cases := map[string]Citizen{
		"short cnp":      {CNP: "123", FirstName: "John", LastName: "Doe"},
		"letters in cnp": {CNP: "12345678901ab", FirstName: "John", LastName: "Doe"},
		"missing first":  {CNP: "1234567890123", FirstName: " ", LastName: "Doe"},
		"missing last":   {CNP: "1234567890123", FirstName: "John"},
		"long name":      {CNP: "1234567890123", FirstName: strings.Repeat("x", MaxNameBytes+1), LastName: "Doe"},
		"invalid utf8":   {CNP: "1234567890123", FirstName: "\xff", LastName: "Doe"},
	}
	for name, c := range cases {
		assert.Error(t, c.Validate(), name)
	}
}

func TestValidPIN(t *testing.T) {
	assert.True(t, ValidPIN("0042", 4))
	assert.False(t, ValidPIN("042", 4))
	assert.False(t, ValidPIN("04a2", 4))
	assert.False(t, ValidPIN("", 0))
}
