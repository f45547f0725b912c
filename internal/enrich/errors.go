package enrich

import "github.com/rotisserie/eris"

// ErrParse is returned when model output holds no usable JSON object. It is
// layer-local: the step is logged as failed and its fields stay unset.
var ErrParse = eris.New("enrich: model output is not valid structured data")
