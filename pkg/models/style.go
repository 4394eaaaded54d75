// Package models contains shared data models used across the MemeNem codebase.
package models

// HumorStyles are the caption styles the generators understand.
var HumorStyles = []string{
	"sarcastic",
	"gen_z_slang",
	"wholesome",
	"dark_humor",
	"corporate_irony",
}

// ValidHumorStyle reports whether style is one of HumorStyles.
func ValidHumorStyle(style string) bool {
	for _, s := range HumorStyles {
		if s == style {
			return true
		}
	}
	return false
}
