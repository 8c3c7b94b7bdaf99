package stages

import (
	"github.com/parchmint/corpora/pipeline"
	"github.com/parchmint/corpora/store"
)

// Register adds all builtin stages to a registry. The record store is
// injected into stages that persist.
func Register(reg *pipeline.Registry, records store.RecordStore) {
	reg.MustRegister("Accumulate", pipeline.Factory{
		Params: []string{},
		New:    NewAccumulate,
	})
	reg.MustRegister("FilterRecords", pipeline.Factory{
		Params: []string{"cond"},
		New:    NewFilterRecords,
	})
	reg.MustRegister("LimitRecords", pipeline.Factory{
		Params: []string{"limit"},
		New:    NewLimitRecords,
	})
	reg.MustRegister("SetField", pipeline.Factory{
		Params: []string{"field", "value"},
		New:    NewSetField,
	})
	reg.MustRegister("RemoveField", pipeline.Factory{
		Params: []string{"field"},
		New:    NewRemoveField,
	})
	reg.MustRegister("AddTags", pipeline.Factory{
		Params: []string{"tags"},
		New:    NewAddTags,
	})
	reg.MustRegister("RemoveTags", pipeline.Factory{
		Params: []string{"tags"},
		New:    NewRemoveTags,
	})
	reg.MustRegister("FieldsToText", pipeline.Factory{
		Params: []string{"fields", "target", "separator"},
		New:    NewFieldsToText,
	})
	reg.MustRegister("SaveRecords", pipeline.Factory{
		Params: []string{"collection"},
		New:    NewSaveRecords(records),
	})
}
