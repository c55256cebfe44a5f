// Package ren implements a recurrent equilibrium network whose state
// evolution is contracting by construction.
//
// The free parameters ([Params]) are unconstrained dense matrices. An
// explicit [Params.Compile] call maps them to the constrained dynamics
// matrices ([Dynamics]) through closed-form algebra that satisfies a
// quadratic contraction certificate for any parameter values, so no
// projection or rejection step is ever needed after a parameter update.
//
// The internal feedback vector w solves the implicit equation
//
//	w = tanh(C1·x + D11·w + D12·u + bv)
//
// exactly by forward substitution: D11 is strictly lower triangular by
// construction, so row i only depends on rows already resolved.
//
// All forward operations are methods on the immutable [Dynamics]
// snapshot. [Model] owns the parameters, the current snapshot, and the
// internal state, and bridges into the sim package interfaces. After any
// external mutation of the parameters, [Model.Compile] must run before
// the next forward call; nothing in this package steps against free
// parameters directly.
package ren
