// Package check contains the offline address checks that run before any
// network work: syntax validation and domain classification (disposable
// domains, role accounts). They can be used directly, but the recommended
// approach is the Verifier builder in github.com/optimode/mxprobe.
package check
