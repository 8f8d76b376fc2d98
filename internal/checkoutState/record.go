package checkoutState

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/cultivate-vcs/cultivate/pkg/types"
)

const (
	recordFieldOpID        = 1
	recordFieldWorkspaceID = 2
	recordFieldTreeID      = 3
)

// record is the on-disk form of one working copy's checkout state.
type record struct {
	opID        types.OperationID
	workspaceID types.WorkspaceID
	treeID      types.TreeID
}

func (r record) serialize() []byte {
	var b []byte
	b = protowire.AppendTag(b, recordFieldOpID, protowire.BytesType)
	b = protowire.AppendBytes(b, r.opID)
	b = protowire.AppendTag(b, recordFieldWorkspaceID, protowire.BytesType)
	b = protowire.AppendString(b, string(r.workspaceID))
	b = protowire.AppendTag(b, recordFieldTreeID, protowire.BytesType)
	b = protowire.AppendBytes(b, r.treeID.Bytes())
	return b
}

func parseRecord(data []byte) (record, error) {
	var r record
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return record{}, fmt.Errorf("checkout record: bad tag: %w", types.ErrCorruptObject)
		}
		data = data[n:]
		if typ != protowire.BytesType {
			return record{}, fmt.Errorf("checkout record: unexpected wire type for field %d: %w", num, types.ErrCorruptObject)
		}
		v, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return record{}, fmt.Errorf("checkout record: truncated field %d: %w", num, types.ErrCorruptObject)
		}
		data = data[n:]

		switch num {
		case recordFieldOpID:
			r.opID = append(types.OperationID(nil), v...)
		case recordFieldWorkspaceID:
			r.workspaceID = types.WorkspaceID(v)
		case recordFieldTreeID:
			id, err := types.TreeIDFromBytes(v)
			if err != nil {
				return record{}, fmt.Errorf("checkout record: %v: %w", err, types.ErrCorruptObject)
			}
			r.treeID = id
		default:
			return record{}, fmt.Errorf("checkout record: unexpected field %d: %w", num, types.ErrCorruptObject)
		}
	}
	if len(r.opID) == 0 || r.workspaceID == "" {
		return record{}, fmt.Errorf("checkout record: missing required fields: %w", types.ErrCorruptObject)
	}
	return r, nil
}
