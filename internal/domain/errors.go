package domain

import (
	"errors"
	"fmt"
)

// Errores de contrato: violaciones de programación que deben fallar en voz
// alta (abortan el trade individual, nunca el ciclo completo).
var (
	// ErrExecutionViolation: se intentó ejecutar una decisión marcada
	// should_trade=false.
	ErrExecutionViolation = errors.New("execution of a should_trade=false decision")

	// ErrDuplicatePosition: ya existe una posición abierta en ese mercado.
	ErrDuplicatePosition = errors.New("already have position in this market")
)

func errField(kind, field, problem string) error {
	return fmt.Errorf("%s: %s %s", kind, field, problem)
}
