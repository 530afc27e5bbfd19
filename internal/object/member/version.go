package member

import (
	"github.com/blang/semver/v4"

	"github.com/lk2023060901/object-garden-go/pkg/util/merr"
)

// SchemaVersion 是 Member 树编码的当前版本号。
// 主版本号不同的两端不允许交换 Member 树。
const SchemaVersion = "1.0.0"

// CheckSchemaVersion 校验对端声明的编码版本是否与本端兼容。
// 规则：主版本号必须一致；次版本号与修订号允许不同。
func CheckSchemaVersion(peer string) error {
	if peer == "" {
		return merr.WrapErrSchemaIncompatible("(empty)", SchemaVersion)
	}
	pv, err := semver.Parse(peer)
	if err != nil {
		return merr.WrapErrSchemaIncompatible(peer, SchemaVersion, err.Error())
	}
	local := semver.MustParse(SchemaVersion)
	if pv.Major != local.Major {
		return merr.WrapErrSchemaIncompatible(peer, SchemaVersion)
	}
	return nil
}
