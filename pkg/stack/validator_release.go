//go:build !stackdebug

package stack

// DebugBuild reports whether the package was built with the stackdebug tag.
const DebugBuild = false

func defaultValidator() Validator {
	return NopValidator{}
}
