// Package prompt assembles the text instruction sent with each flat-lay photo.
package prompt

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"lookbook/internal/domain"
)

const (
	// AspectRatio is the portrait ratio used for e-commerce fashion shots.
	AspectRatio = "3:4"
	// ImageSize is the resolution tier requested from the model.
	ImageSize = "2K"
)

// NormalizeRemarks canonicalises free-text remarks: NFC form, collapsed
// whitespace, no surrounding blanks.
func NormalizeRemarks(remarks string) string {
	remarks = norm.NFC.String(remarks)
	return strings.Join(strings.Fields(remarks), " ")
}

// BuildFashion renders the photographer brief for the given settings. The
// customisation requirement is only present when remarks are non-empty.
func BuildFashion(p domain.Params) string {
	gender := p.Gender.Label()
	lines := []string{
		"你是一位专业的时尚摄影师，擅长捕捉服装的质感与模特的自然状态。",
		fmt.Sprintf("请根据输入的服装图片，为一位【%s】模特拍摄一张极具氛围感和购买欲的电商生活照主图。", gender),
		"",
		"核心要求：",
		fmt.Sprintf("1. 主体：一位富有魅力的【%s】模特，自然地穿着输入的服装。", gender),
		"2. 服装还原：必须精准还原输入图片中衣服的颜色、材质纹理和版型细节。衣服穿在模特身上要显得合身且高级。",
		"3. 场景与光影：创造一个与服装风格相匹配的、令人向往的生活场景（例如：阳光明媚的北欧风客厅、舒适的咖啡馆角落、或是自然度假风的户外）。光线必须采用柔和的电影级自然光（Golden Hour lighting），在模特和衣物上投射出温暖、高级的光影层次。",
		"4. 姿态与情绪：模特姿态要放松、自然、自信，展现出穿着该服装时的舒适感和时尚态度，避免僵硬的摆拍。",
		"5. 构图：采用编辑级（Editorial）构图，景深适当，焦点清晰地落在模特和服装上。",
	}
	if remarks := NormalizeRemarks(p.Remarks); remarks != "" {
		lines = append(lines, fmt.Sprintf("6. 额外定制要求：%s (请务必满足此要求)", remarks))
	}
	lines = append(lines, "", "请直接生成一张高质量的摄影图像。")
	return strings.Join(lines, "\n")
}
