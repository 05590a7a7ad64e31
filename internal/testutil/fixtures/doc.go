// Package fixtures synthesizes small but structurally valid ELF, PE and
// Mach-O images for tests. The images carry only what symbol resolution
// reads: dynamic symbols, import and export tables, dylib load commands.
package fixtures
