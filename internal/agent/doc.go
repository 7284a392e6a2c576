// Package agent hosts the conversational runtime of a character: it keeps
// message memories, composes prompt state, lets the model pick one of the
// registered actions and reports the action outcome back to the caller.
package agent
