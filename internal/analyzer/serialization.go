package analyzer

import (
	"encoding/xml"
	"fmt"
	"os"
)

type activeAttr struct {
	Active bool `xml:"active,attr"`
}

// serializationConfig is the XML file the analyzer's compiler plugin reads
// to decide what to serialize and where.
type serializationConfig struct {
	XMLName xml.Name `xml:"serialization"`
	Suggest struct {
		Active    bool `xml:"active,attr"`
		Enclosing bool `xml:"enclosing,attr"`
	} `xml:"suggest"`
	Path       string `xml:"path"`
	Annotation struct {
		Nullable string `xml:"nullable"`
		NonNull  string `xml:"nonnull"`
	} `xml:"annotation"`
	ParamTest struct {
		Active bool `xml:"active,attr"`
		Index  int  `xml:"index,attr"`
	} `xml:"paramTest"`
	FieldInitInfo activeAttr `xml:"fieldInitInfo"`
}

// paramTestDisabledIndex is the parameter index the plugin treats as "no
// parameter under test".
const paramTestDisabledIndex = 10000

func newSerializationConfig(outDir, nullable, nonNull string, traceFieldWrites bool) serializationConfig {
	var c serializationConfig
	c.Suggest.Active = true
	c.Suggest.Enclosing = true
	c.Path = outDir
	c.Annotation.Nullable = nullable
	c.Annotation.NonNull = nonNull
	c.ParamTest.Index = paramTestDisabledIndex
	c.FieldInitInfo.Active = traceFieldWrites
	return c
}

func writeSerializationConfig(path string, c serializationConfig) error {
	data, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling serialization config: %w", err)
	}
	data = append([]byte(xml.Header), data...)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing serialization config: %w", err)
	}
	return nil
}
