//go:build !hangwatch_debug

package hang

const debugBuild = false
