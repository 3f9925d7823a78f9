package optimizer

type (
	PlanDescription struct {
		ID          string            `json:"id"`
		Name        string            `json:"name"`
		Parallelism int               `json:"parallelism"`
		TotalCost   float64           `json:"total_cost"`
		Nodes       []NodeDescription `json:"nodes"`
	}

	NodeDescription struct {
		Name          string               `json:"name"`
		Kind          string               `json:"kind"`
		OutputType    string               `json:"output_type"`
		LocalStrategy LocalStrategy        `json:"local_strategy"`
		Cost          float64              `json:"cost"`
		Inputs        []ChannelDescription `json:"inputs,omitempty"`
	}

	ChannelDescription struct {
		Source       string       `json:"source"`
		ShipStrategy ShipStrategy `json:"ship_strategy"`
		Keys         string       `json:"keys,omitempty"`
		Partitioner  string       `json:"partitioner,omitempty"`
	}
)

// Describe flattens the plan into a serializable form.
func (op *OptimizedPlan) Describe() PlanDescription {
	d := PlanDescription{
		ID:          op.ID,
		Name:        op.Name,
		Parallelism: op.Parallelism,
		TotalCost:   op.TotalCosts().Total(),
		Nodes:       make([]NodeDescription, 0, len(op.Nodes)),
	}
	for _, pn := range op.Nodes {
		nd := NodeDescription{
			Name:          pn.Node.Name(),
			Kind:          string(pn.Node.Kind()),
			OutputType:    pn.Node.OutputType().String(),
			LocalStrategy: pn.LocalStrategy,
			Cost:          pn.Costs.Total(),
		}
		for _, ch := range pn.Inputs {
			cd := ChannelDescription{
				Source:       ch.Source.Name(),
				ShipStrategy: ch.ShipStrategy,
			}
			if !ch.Keys.IsZero() {
				cd.Keys = ch.Keys.String()
			}
			if ch.Partitioner != nil {
				cd.Partitioner = ch.Partitioner.String()
			}
			nd.Inputs = append(nd.Inputs, cd)
		}
		d.Nodes = append(d.Nodes, nd)
	}
	return d
}
