//go:build llama

package session

// cgo link directives for the in-process llama engine.
// - rpath of $ORIGIN so the loader finds libllama.so next to the binary (./bin).
// - -L${SRCDIR}/../../bin so the linker finds it when building with -tags llama.
/*
#cgo LDFLAGS: -Wl,-rpath,'$ORIGIN' -L${SRCDIR}/../../bin -lllama
*/
import "C"
