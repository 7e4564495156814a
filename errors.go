package fel

import "errors"

// Surface error codes of the certification pipeline. Rule-specific findings
// use the rulebook numbering (N.N.N.N) instead.
const (
	CodeSchemaValidation = "ERR_001"
	CodeMalformedXML     = "ERR_002"

	CodeInvalidDateRange      = "ERR_101"
	CodeInvalidNIT            = "ERR_102"
	CodeInvalidAmounts        = "ERR_103"
	CodeInvalidTaxCalculation = "ERR_104"

	CodeInvalidCredentials = "ERR_201"
	CodeTokenExpired       = "ERR_202"

	CodeSATAPIError  = "ERR_301"
	CodeSATRejection = "ERR_302"

	CodePersistenceError = "ERR_401"
	CodeSignatureError   = "ERR_402"

	// Engine-level codes.
	CodeRegistryUnavailable = "REGISTRY_UNAVAILABLE"
	CodeSchemaLoadError     = "SCHEMA_LOAD_ERROR"
	CodeInvalidEncoding     = "INVALID_ENCODING"
	CodeMissingEncoding     = "MISSING_ENCODING"
	CodeStaleSchema         = "STALE_SCHEMA"
	CodeCancelled           = "CANCELLED"
)

// ErrorMessages holds the Spanish-language messages of the SAT taxonomy,
// keyed by surface code.
var ErrorMessages = map[string]string{
	CodeSchemaValidation:      "El XML enviado no cumple con el esquema del XSD",
	CodeMalformedXML:          "Formato XML inválido",
	CodeInvalidDateRange:      "La diferencia entre la fecha de emisión y de certificación excede los cinco días",
	CodeInvalidNIT:            "El NIT no tiene un formato válido",
	CodeInvalidAmounts:        "Los montos calculados son incorrectos",
	CodeInvalidTaxCalculation: "El cálculo de impuestos es incorrecto",
	CodeInvalidCredentials:    "Credenciales inválidas",
	CodeTokenExpired:          "Token de acceso expirado",
	CodeSATAPIError:           "Error en la comunicación con SAT",
	CodeSATRejection:          "Documento rechazado por SAT",
	CodePersistenceError:      "Error en la base de datos",
	CodeSignatureError:        "Error en la firma electrónica",
	CodeRegistryUnavailable:   "El registro externo no está disponible",
	CodeSchemaLoadError:       "No fue posible cargar el esquema XSD",
	CodeInvalidEncoding:       "Codificación de caracteres inválida",
	CodeCancelled:             "Validación cancelada",
}

// Message returns the Spanish message for a surface code, or the code itself
// when no message is cataloged.
func Message(code string) string {
	if m, ok := ErrorMessages[code]; ok {
		return m
	}
	return code
}

// ErrRegistryUnavailable signals a transient registry outage. Registry
// implementations wrap it so the engine can distinguish an outage from a
// negative answer.
var ErrRegistryUnavailable = errors.New("fel: registry unavailable")

// ErrSchemaLoad signals that a schema could not be fetched nor served from
// the cache.
var ErrSchemaLoad = errors.New("fel: schema load failed")
