//go:build hangwatch_debug

package hang

// debugBuild marks builds where a paused debugger looks like a hang.
const debugBuild = true
