//go:build stackdebug

package stack

// DebugBuild reports whether the package was built with the stackdebug tag.
const DebugBuild = true

func defaultValidator() Validator {
	return NewFenceValidator(DefaultFenceSize, DefaultTrapWords)
}
