// Package render prints client results for a terminal.
//
// Tables are aligned with text/tabwriter. Every string that came from the backend goes
// through a bluemonday strict policy and loses control characters before it is printed,
// so neither markup nor terminal escape sequences reach the screen.
//
// [Renderer.Notice] turns a classified error into the user-facing message and
// [ExitCode] into the process status.
package render
