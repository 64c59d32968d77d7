package scenario

// BuiltIn returns predefined fan speed scenarios.
func BuiltIn() map[string]Scenario {
	return map[string]Scenario{
		"idle": {
			Name:        "Idle",
			Description: "Fans stopped; quantities wander around their equilibrium points.",
			Phases:      []Phase{{Name: "idle", Correlation: 0}},
		},
		"ventilation": {
			Name:        "Ventilation",
			Description: "The control module runs the fans while CO2 density is high and stops them once it has dropped.",
			Phases: []Phase{
				{
					Name:        "idle",
					Description: "Fans stopped.",
					Triggers:    []Trigger{{Event: EventAbove, Quantity: "C02", Value: 70, Next: "ventilate"}},
				},
				{
					Name:        "ventilate",
					Description: "Fans at high speed pull CO2 density and temperature down.",
					Correlation: 80,
					Triggers:    []Trigger{{Event: EventBelow, Quantity: "C02", Value: 40, Next: "idle"}},
				},
			},
		},
		"alarm": {
			Name:        "Alarm",
			Description: "Quantities jump to their maximum, the fans react at full speed and then settle.",
			Phases: []Phase{
				{
					Name:        "spike",
					Description: "Every quantity is forced to its maximum.",
					SimulateMax: true,
					Triggers:    []Trigger{{Event: EventSteps, Value: 2, Next: "full-speed"}},
				},
				{
					Name:        "full-speed",
					Description: "Fans at full speed.",
					Correlation: 100,
					Triggers:    []Trigger{{Event: EventBelow, Quantity: "C02", Value: 50, Next: "settle"}},
				},
				{
					Name:        "settle",
					Description: "Fans slow down while the tunnel returns to normal.",
					Correlation: 30,
				},
			},
		},
	}
}
