package templates

//
// ENVIRONMENT SNIPPETS
//

var environmentPrefix = `
#### Generated by benchfuzz for fuzzer %s, benchmark %s.
#### Source this file to reproduce the build environment by hand.
`

var stagedBuildBlock = `
#### Build procedure (run with $SRC and $WORK staged by benchfuzz):
####   %s -ex %s
`
