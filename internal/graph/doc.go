// Package graph implements kernels, nodes and graphs: the verifiable,
// executable part of the runtime.
//
// # Ownership
//
// A Graph exclusively owns its Nodes and the virtual data objects created in
// its scope; they are freed with the graph. A Node refers to its bound
// parameter objects weakly: binding a parameter never changes the object's
// counts, so the caller remains responsible for releasing data objects.
//
// # Verification
//
// Verify walks the nodes in list order. For every node it checks the bound
// parameters against the kernel signature, runs the kernel's input and output
// validators (materializing virtual outputs from the produced Meta), runs the
// kernel-level validator, asks the node's target to verify the node, and
// finally runs the kernel initializer. Composite kernels build and verify
// their child graph in the initializer.
//
// # Processing
//
// Process runs the nodes strictly in list order on the caller's goroutine.
// Consecutive nodes bound to the same target are handed to that target's
// Backend as one run. The first node that fails abandons the graph; nodes
// after it do not execute and nothing already done is rolled back.
package graph
