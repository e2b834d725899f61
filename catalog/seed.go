package catalog

import "time"

// seedMedicines returns the built-in medicine master list.
func seedMedicines() []Medicine {
	return []Medicine{
		{MedicineID: "MED001", MedicineName: "Paracetamol", Strength: "500mg", Form: "Tablet", StockLevel: 500, Category: "Analgesic", MaxQuantityPerOrder: 90},
		{MedicineID: "MED002", MedicineName: "Paracetamol", Strength: "650mg", Form: "Tablet", StockLevel: 200, Category: "Analgesic", MaxQuantityPerOrder: 90},
		{MedicineID: "MED003", MedicineName: "Ibuprofen", Strength: "200mg", Form: "Tablet", StockLevel: 350, Category: "Analgesic", MaxQuantityPerOrder: 90},
		{MedicineID: "MED004", MedicineName: "Cetirizine", Strength: "10mg", Form: "Tablet", StockLevel: 150, Category: "Antihistamine", MaxQuantityPerOrder: 30},
		{MedicineID: "MED005", MedicineName: "Amoxicillin", Strength: "250mg", Form: "Capsule", StockLevel: 120, PrescriptionRequired: true, Category: "Antibiotic", MaxQuantityPerOrder: 21},
		{MedicineID: "MED006", MedicineName: "Amoxicillin", Strength: "500mg", Form: "Capsule", StockLevel: 80, PrescriptionRequired: true, Category: "Antibiotic", MaxQuantityPerOrder: 21},
		{MedicineID: "MED007", MedicineName: "Atorvastatin", Strength: "10mg", Form: "Tablet", StockLevel: 140, PrescriptionRequired: true, Category: "Statin", MaxQuantityPerOrder: 90},
		{MedicineID: "MED008", MedicineName: "Metformin", Strength: "500mg", Form: "Tablet", StockLevel: 260, PrescriptionRequired: true, Category: "Antidiabetic", MaxQuantityPerOrder: 90},
		{MedicineID: "MED009", MedicineName: "Metformin", Strength: "850mg", Form: "Tablet", StockLevel: 90, PrescriptionRequired: true, Category: "Antidiabetic", MaxQuantityPerOrder: 90},
		{MedicineID: "MED010", MedicineName: "Tramadol", Strength: "50mg", Form: "Capsule", StockLevel: 60, PrescriptionRequired: true, Category: "Opioid", MaxQuantityPerOrder: 30, ControlledSubstance: true},
		{MedicineID: "MED011", MedicineName: "Salbutamol", Strength: "100mcg", Form: "Inhaler", StockLevel: 45, PrescriptionRequired: true, Category: "Bronchodilator", MaxQuantityPerOrder: 5},
		{MedicineID: "MED012", MedicineName: "Dextromethorphan", Strength: "15mg/5ml", Form: "Syrup", StockLevel: 70, Category: "Antitussive", MaxQuantityPerOrder: 10},
		{MedicineID: "MED013", MedicineName: "Insulin Glargine", Strength: "100IU/ml", Form: "Injection", StockLevel: 0, PrescriptionRequired: true, Category: "Antidiabetic", MaxQuantityPerOrder: 10},
		{MedicineID: "MED014", MedicineName: "Ranitidine", Strength: "150mg", Form: "Tablet", StockLevel: 0, Category: "Antacid", Discontinued: true, MaxQuantityPerOrder: 60},
		{MedicineID: "MED015", MedicineName: "Omeprazole", Strength: "20mg", Form: "Capsule", StockLevel: 15, Category: "Antacid", MaxQuantityPerOrder: 60},
	}
}

// seedOrders returns the built-in order history. Dates are relative to
// startup so refill predictions stay meaningful.
func seedOrders() []OrderRecord {
	now := time.Now()
	return []OrderRecord{
		{PatientID: "P001", MedicineName: "Atorvastatin", Strength: "10mg", Quantity: 30, OrderDate: now.AddDate(0, 0, -27)},
		{PatientID: "P001", MedicineName: "Metformin", Strength: "500mg", Quantity: 60, OrderDate: now.AddDate(0, 0, -20)},
		{PatientID: "P001", MedicineName: "Paracetamol", Strength: "500mg", Quantity: 20, OrderDate: now.AddDate(0, 0, -90)},
		{PatientID: "P002", MedicineName: "Salbutamol", Strength: "100mcg", Quantity: 2, OrderDate: now.AddDate(0, 0, -45)},
	}
}

// seedPrescriptions returns the built-in prescription records.
func seedPrescriptions() []PrescriptionRecord {
	now := time.Now()
	return []PrescriptionRecord{
		{PatientID: "P001", MedicineName: "Atorvastatin", Strength: "10mg", IssuedAt: now.AddDate(0, -1, 0), ExpiresAt: now.AddDate(0, 5, 0)},
		{PatientID: "P001", MedicineName: "Metformin", Strength: "", IssuedAt: now.AddDate(0, -2, 0), ExpiresAt: now.AddDate(0, 4, 0)},
	}
}
