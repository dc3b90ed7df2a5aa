package classifier

var disposalTips = map[Category]string{
	Recyclable:    "Clean the item and place it in the recycling bin. Remove any non-recyclable parts like caps or labels if possible.",
	Biodegradable: "Compost this item in your garden compost bin or municipal composting facility. It will break down naturally and enrich the soil.",
	Hazardous:     "Take this item to a specialized hazardous waste collection center. Do not put it in regular trash as it can harm the environment.",
}

const unknownTip = "Check local waste management guidelines for proper disposal."

// DisposalTip devolve a orientação de descarte da categoria.
func DisposalTip(c Category) string {
	if tip, ok := disposalTips[c]; ok {
		return tip
	}
	return unknownTip
}
